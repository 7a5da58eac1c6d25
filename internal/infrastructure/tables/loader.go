package tables

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cclastrib/backend/internal/domain/fiscal"
)

// File names the loader looks for under the data directory.
const (
	FileNCMMaster     = "ncm_master.csv"
	FileNCMExceptions = "ncm_excecoes.csv"
	FileIBSRates      = "ibs_aliquotas.csv"
	FileCBSRates      = "cbs_aliquotas.csv"
	FileIBSTransition = "transicao_ibs.csv"
	FileCBSTransition = "transicao_cbs.csv"
	FileClassTrib     = "cclastrib.csv"
	FileCSTMap        = "cst_ibs_cbs_map.csv"

	annexModelSuffix = "_model.csv"
)

// Loader reads the semicolon-separated annex tables from a directory
// and serves immutable snapshots. A missing file yields an empty table
// and a warning, never an error; a broken file fails the whole reload
// so the previous snapshot stays in place.
type Loader struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	current *fiscal.RuleTables
}

// NewLoader creates a loader for the given directory. Call Reload
// before serving traffic.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		dir:     dir,
		logger:  logger.Named("tables"),
		current: &fiscal.RuleTables{BaseDir: dir, AnnexModels: map[string][]fiscal.AnnexRow{}},
	}
}

// Current returns the latest snapshot. Safe for concurrent use.
func (l *Loader) Current() *fiscal.RuleTables {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Reload rebuilds the snapshot from disk and swaps it in.
func (l *Loader) Reload(ctx context.Context) (*fiscal.RuleTables, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := &fiscal.RuleTables{
		BaseDir:     l.dir,
		LoadedAt:    time.Now().UTC(),
		AnnexModels: map[string][]fiscal.AnnexRow{},
	}

	var err error
	if t.NCMMaster, err = l.loadNCM(FileNCMMaster); err != nil {
		return nil, err
	}
	if t.NCMExceptions, err = l.loadNCM(FileNCMExceptions); err != nil {
		return nil, err
	}
	if t.IBSRates, err = l.loadRates(FileIBSRates); err != nil {
		return nil, err
	}
	if t.CBSRates, err = l.loadRates(FileCBSRates); err != nil {
		return nil, err
	}
	if t.IBSTransition, err = l.loadTransition(FileIBSTransition, "percentual_ibs"); err != nil {
		return nil, err
	}
	if t.CBSTransition, err = l.loadTransition(FileCBSTransition, "percentual_cbs"); err != nil {
		return nil, err
	}
	if t.ClassTrib, err = l.loadClassTrib(FileClassTrib); err != nil {
		return nil, err
	}
	if t.CSTMap, err = l.loadCSTMap(FileCSTMap); err != nil {
		return nil, err
	}
	if err = l.loadAnnexModels(t); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = t
	l.mu.Unlock()

	l.logger.Info("fiscal tables loaded",
		zap.String("dir", l.dir),
		zap.Any("rows", t.Stats()),
	)
	return t, nil
}

// readRows parses one semicolon CSV into header-keyed rows. Headers
// are lower-cased and trimmed; a UTF-8 BOM on the first header is
// stripped. Missing files return nil rows.
func (l *Loader) readRows(name string) ([]map[string]string, error) {
	path := filepath.Join(l.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("table file missing, using empty table", zap.String("file", name))
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	r.Comma = ';'
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cell returns the first non-empty value among the aliased columns.
func cell(row map[string]string, names ...string) string {
	for _, n := range names {
		if v, ok := row[n]; ok && v != "" {
			return v
		}
	}
	return ""
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &d
}

func (l *Loader) loadNCM(name string) ([]fiscal.NCMEntry, error) {
	rows, err := l.readRows(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fiscal.NCMEntry, 0, len(rows))
	for _, row := range rows {
		e := fiscal.NCMEntry{
			NCM:               cell(row, "ncm", "codigo_ncm"),
			Category:          fiscal.NormalizeCode(cell(row, "categoria", "category")),
			Description:       cell(row, "descricao", "descrição"),
			ClassTribOverride: cell(row, "cclastrib_override", "cclastrib"),
			LegalBasis:        cell(row, "fundamento_legal", "fundamento"),
			ValidFrom:         parseDate(cell(row, "vigencia_inicio")),
			ValidTo:           parseDate(cell(row, "vigencia_fim")),
		}
		if e.NCM == "" {
			continue
		}
		if v, ok := fiscal.ParseRateBR(cell(row, "aliquota_override", "aliquota")); ok {
			e.RateOverride = &v
		}
		if b := fiscal.ParseSN(cell(row, "beneficio_zfm", "zfm")); b != nil {
			e.ZFMBenefit = *b
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *Loader) loadRates(name string) ([]fiscal.RateEntry, error) {
	rows, err := l.readRows(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fiscal.RateEntry, 0, len(rows))
	for _, row := range rows {
		kind := fiscal.NormalizeCode(cell(row, "tipo", "tipo_aliquota"))
		rate, ok := fiscal.ParseRateBR(cell(row, "aliquota", "percentual"))
		if kind == "" || !ok {
			continue
		}
		entries = append(entries, fiscal.RateEntry{Kind: kind, Rate: rate})
	}
	return entries, nil
}

func (l *Loader) loadTransition(name, rateColumn string) ([]fiscal.TransitionEntry, error) {
	rows, err := l.readRows(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fiscal.TransitionEntry, 0, len(rows))
	for _, row := range rows {
		year, err := strconv.Atoi(cell(row, "ano", "year"))
		if err != nil {
			continue
		}
		// transition percentages are stored as fractions already
		rate, ok := fiscal.ParseDecimalBR(cell(row, rateColumn, "percentual", "aliquota"))
		if !ok {
			continue
		}
		entries = append(entries, fiscal.TransitionEntry{Year: year, Rate: rate})
	}
	return entries, nil
}

func (l *Loader) loadClassTrib(name string) ([]fiscal.ClassTribRule, error) {
	rows, err := l.readRows(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fiscal.ClassTribRule, 0, len(rows))
	for _, row := range rows {
		r := fiscal.ClassTribRule{
			Code:          fiscal.NormalizeCode(cell(row, "codigo", "cclastrib", "cod")),
			Description:   cell(row, "descricao", "descrição"),
			Regime:        cell(row, "regime", "regime_fiscal"),
			CFOP:          cell(row, "cfop"),
			UFEmitter:     cell(row, "uf_emitente"),
			UFDestination: cell(row, "uf_destinatario"),
			CSTICMS:       cell(row, "cst_icms"),
			LegalBasis:    cell(row, "fundamento_legal", "fundamento"),
		}
		if r.Code == "" {
			continue
		}
		entries = append(entries, r)
	}
	return entries, nil
}

func (l *Loader) loadCSTMap(name string) ([]fiscal.CSTMapEntry, error) {
	rows, err := l.readRows(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fiscal.CSTMapEntry, 0, len(rows))
	for _, row := range rows {
		e := fiscal.CSTMapEntry{
			ClassTribCode: fiscal.NormalizeCode(cell(row, "cclastrib", "codigo")),
			CST:           cell(row, "cst", "cst_ibs_cbs"),
			CClassTrib:    cell(row, "cclass_trib", "cclasstrib"),
			Description:   cell(row, "descricao", "descrição"),
		}
		if e.ClassTribCode == "" || e.CST == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// loadAnnexModels picks up every *_model.csv in the directory, keyed
// by the file name without the suffix.
func (l *Loader) loadAnnexModels(t *fiscal.RuleTables) error {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*"+annexModelSuffix))
	if err != nil {
		return err
	}
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), annexModelSuffix)
		rows, err := l.readRows(filepath.Base(path))
		if err != nil {
			return err
		}
		annex := make([]fiscal.AnnexRow, 0, len(rows))
		for _, row := range rows {
			annex = append(annex, fiscal.AnnexRow(row))
		}
		t.AnnexModels[name] = annex
	}
	return nil
}
