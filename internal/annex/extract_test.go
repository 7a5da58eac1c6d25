package annex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// latin1 encodes a UTF-8 string the way the statute HTML is published.
func latin1(t *testing.T, s string) string {
	t.Helper()
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	require.NoError(t, err)
	return out
}

const statuteHTML = `<html><body>
<p>Art. 472. Disposições finais.</p>
<p><b>ANEXO I</b></p>
<p>Produtos da cesta básica</p>
<table>
<tr><th>NCM</th><th>Descrição</th><th>Alíquota</th></tr>
<tr><td>1006.30.21</td><td>Arroz polido</td><td>0%</td></tr>
<tr><td>0401.10.10</td><td>Leite fluido</td><td>0%</td></tr>
</table>
<p><b>ANEXO VIII</b></p>
<table>
<tr><td>NCM</td><td>Descrição</td></tr>
<tr><td>3003.90.99</td><td>Medicamentos</td></tr>
<tr><td></td></tr>
</table>
<p>ANEXO XIV</p>
<p>Sem tabela alguma.</p>
</body></html>`

func TestExtract(t *testing.T) {
	annexes, err := Extract(strings.NewReader(latin1(t, statuteHTML)))
	require.NoError(t, err)
	require.Len(t, annexes, 2, "annex without tables must be dropped")

	first := annexes[0]
	assert.Equal(t, "ANEXO I", first.Title)
	require.Len(t, first.Rows, 2, "header row must be skipped")
	assert.Equal(t, "1006.30.21", first.Rows[0].NCM)
	assert.Equal(t, "Arroz polido", first.Rows[0].Description)
	assert.Equal(t, "0%", first.Rows[0].Rate)

	second := annexes[1]
	assert.Equal(t, "ANEXO VIII", second.Title)
	require.Len(t, second.Rows, 1, "short and header rows must be skipped")
	assert.Equal(t, "Medicamentos", second.Rows[0].Description)
	assert.Equal(t, "", second.Rows[0].Rate)
}

func TestExtractDecodesLatin1(t *testing.T) {
	page := `<html><body><p>ANEXO II</p><table>
<tr><td>2203.00.00</td><td>Cerveja não alcoólica</td><td>8,5%</td></tr>
</table></body></html>`

	annexes, err := Extract(strings.NewReader(latin1(t, page)))
	require.NoError(t, err)
	require.Len(t, annexes, 1)
	assert.Equal(t, "Cerveja não alcoólica", annexes[0].Rows[0].Description)
}

func TestAnnexFileName(t *testing.T) {
	a := Annex{Title: "ANEXO I LISTA DE PRODUTOS"}
	assert.Equal(t, "ANEXO_I_LISTA_DE_PRODUTOS.csv", a.FileName())
}

func TestWriteCSV(t *testing.T) {
	a := Annex{
		Title: "ANEXO I",
		Rows: []Row{
			{NCM: "1006.30.21", Description: "Arroz polido", Rate: "0%"},
			{NCM: "0401.10.10", Description: "Leite fluido", Rate: "0%"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, a))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "anexo;linha;ncm;descricao;aliquota;observacao;vigencia_inicio;vigencia_fim", lines[0])
	assert.Equal(t, "ANEXO I;1;1006.30.21;Arroz polido;0%;;;", lines[1])
	assert.Equal(t, "ANEXO I;2;0401.10.10;Leite fluido;0%;;;", lines[2])
}
