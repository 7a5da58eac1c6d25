// Package annex extracts the NCM tables from the annexes of the
// LC 214/2025 statute HTML as published (Latin-1 encoded) and writes
// them as semicolon CSV files the rule table loader understands.
package annex

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// headingPattern matches annex headings such as "ANEXO I" or "ANEXO XIV".
var headingPattern = regexp.MustCompile(`(?i)^ANEXO\s+[IVXLCDM]+`)

var spacePattern = regexp.MustCompile(`\s+`)

// Row is one NCM line of an annex table.
type Row struct {
	NCM         string
	Description string
	Rate        string
}

// Annex is one statute annex with the rows of every table under its heading.
type Annex struct {
	Title string
	Rows  []Row
}

// FileName returns the CSV file name for the annex.
func (a Annex) FileName() string {
	return strings.ReplaceAll(a.Title, " ", "_") + ".csv"
}

// Extract parses the Latin-1 statute HTML and returns every annex that
// has at least one table. Tables belong to the closest preceding annex
// heading.
func Extract(r io.Reader) ([]Annex, error) {
	doc, err := html.Parse(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var annexes []Annex
	var current *Annex

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if title, ok := headingTitle(n); ok && len(findAll(n, "table")) == 0 {
				if current != nil && len(current.Rows) > 0 {
					annexes = append(annexes, *current)
				}
				current = &Annex{Title: title}
				// heading text lives inside this subtree, skip it
				return
			}
			if n.Data == "table" && current != nil {
				current.Rows = append(current.Rows, tableRows(n)...)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if current != nil && len(current.Rows) > 0 {
		annexes = append(annexes, *current)
	}
	return annexes, nil
}

// WriteCSV writes one annex in the loader's semicolon layout.
func WriteCSV(w io.Writer, a Annex) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := []string{"anexo", "linha", "ncm", "descricao", "aliquota", "observacao", "vigencia_inicio", "vigencia_fim"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, row := range a.Rows {
		record := []string{a.Title, strconv.Itoa(i + 1), row.NCM, row.Description, row.Rate, "", "", ""}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// headingTitle reports whether the node is an annex heading. Only the
// outermost matching element counts; nested tags repeating the heading
// text are absorbed by the subtree skip in Extract.
func headingTitle(n *html.Node) (string, bool) {
	text := normalizeSpace(nodeText(n))
	if text == "" || !headingPattern.MatchString(text) {
		return "", false
	}
	return strings.ToUpper(text), true
}

// tableRows collects the data rows of one table, dropping header lines
// and rows with fewer than two cells.
func tableRows(table *html.Node) []Row {
	var rows []Row
	for _, tr := range findAll(table, "tr") {
		var cols []string
		for _, cell := range findAll(tr, "td", "th") {
			cols = append(cols, normalizeSpace(nodeText(cell)))
		}
		if len(cols) < 2 || strings.Contains(strings.ToUpper(cols[0]), "NCM") {
			continue
		}
		row := Row{NCM: cols[0], Description: cols[1]}
		if len(cols) > 2 {
			row.Rate = cols[2]
		}
		rows = append(rows, row)
	}
	return rows
}

// findAll returns the descendant elements with any of the given names,
// in document order.
func findAll(n *html.Node, names ...string) []*html.Node {
	var out []*html.Node
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			for _, name := range names {
				if node.Data == name {
					out = append(out, node)
					break
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

// nodeText concatenates the text content of a subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
