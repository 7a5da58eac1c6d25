package tables

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func seedTables(t *testing.T, dir string) {
	t.Helper()
	// BOM on purpose, the published spreadsheets carry one
	writeFile(t, dir, FileNCMMaster, "\ufeffncm;categoria;descricao;vigencia_inicio;vigencia_fim\n"+
		"84713019;PADRAO;Computadores;;\n"+
		"22030000;BEBIDAS;Cerveja;2026-01-01;\n")
	writeFile(t, dir, FileNCMExceptions, "ncm;categoria;aliquota_override;fundamento_legal\n"+
		"84713019;REDUZIDA;2;LC 214/2025, anexo I\n")
	writeFile(t, dir, FileIBSRates, "tipo;aliquota\npadrao;17\nreduzida;8,5\n")
	writeFile(t, dir, FileCBSRates, "tipo;aliquota\npadrao;8,8\n")
	writeFile(t, dir, FileIBSTransition, "ano;percentual_ibs\n2026;0,001\n2027;0,005\n")
	writeFile(t, dir, FileCBSTransition, "ano;percentual_cbs\n2026;0,009\n2027;0,088\n")
	writeFile(t, dir, FileClassTrib, "codigo;descricao;regime;cfop;uf_emitente;uf_destinatario;cst_icms\n"+
		"VENDA-INTERNA;Venda interna;NORMAL;5102;;;\n")
	writeFile(t, dir, FileCSTMap, "cclastrib;cst;cclass_trib;descricao\n"+
		"VENDA-INTERNA;000;000001;Tributacao integral\n")
	writeFile(t, dir, "ANEXO_I"+annexModelSuffix, "anexo;linha;ncm;descricao;aliquota\nANEXO I;1;84713019;Computadores;0\n")
}

func TestLoaderReload(t *testing.T) {
	dir := t.TempDir()
	seedTables(t, dir)

	l := NewLoader(dir, zap.NewNop())
	snap, err := l.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, l.Current())

	require.Len(t, snap.NCMMaster, 2)
	assert.Equal(t, "84713019", snap.NCMMaster[0].NCM)
	assert.Equal(t, "PADRAO", snap.NCMMaster[0].Category)
	require.NotNil(t, snap.NCMMaster[1].ValidFrom)

	require.Len(t, snap.NCMExceptions, 1)
	require.NotNil(t, snap.NCMExceptions[0].RateOverride)
	assert.Equal(t, "0.02", snap.NCMExceptions[0].RateOverride.String())
	assert.Equal(t, "LC 214/2025, anexo I", snap.NCMExceptions[0].LegalBasis)

	require.Len(t, snap.IBSRates, 2)
	assert.Equal(t, "0.17", snap.IBSRates[0].Rate.String())
	assert.Equal(t, "0.085", snap.IBSRates[1].Rate.String())

	require.Len(t, snap.IBSTransition, 2)
	assert.Equal(t, 2026, snap.IBSTransition[0].Year)
	assert.Equal(t, "0.001", snap.IBSTransition[0].Rate.String())

	require.Len(t, snap.ClassTrib, 1)
	assert.Equal(t, "VENDA-INTERNA", snap.ClassTrib[0].Code)

	require.Len(t, snap.CSTMap, 1)
	assert.Equal(t, "000", snap.CSTMap[0].CST)
	assert.Equal(t, "000001", snap.CSTMap[0].CClassTrib)

	require.Contains(t, snap.AnnexModels, "ANEXO_I")
	assert.Equal(t, "84713019", snap.AnnexModels["ANEXO_I"][0]["ncm"])

	stats := snap.Stats()
	assert.Equal(t, 2, stats["ncm_master"])
	assert.Equal(t, 1, stats["anexo_anexo_i"])
}

func TestLoaderMissingFilesYieldEmptyTables(t *testing.T) {
	dir := t.TempDir()

	l := NewLoader(dir, zap.NewNop())
	snap, err := l.Reload(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.NCMMaster)
	assert.Empty(t, snap.ClassTrib)
	assert.Empty(t, snap.AnnexModels)
}

func TestLoaderKeepsSnapshotOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	seedTables(t, dir)

	l := NewLoader(dir, zap.NewNop())
	first, err := l.Reload(context.Background())
	require.NoError(t, err)

	// unbalanced quote makes the csv reader fail
	writeFile(t, dir, FileClassTrib, "codigo;descricao\n\"broken;row\n")
	_, err = l.Reload(context.Background())
	require.Error(t, err)
	assert.Same(t, first, l.Current())
}

func TestLoaderSkipsRowsWithoutKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileNCMMaster, "ncm;categoria\n;SEM-NCM\n84713019;PADRAO\n")
	writeFile(t, dir, FileIBSTransition, "ano;percentual_ibs\nabc;0,1\n2026;0,001\n")

	l := NewLoader(dir, zap.NewNop())
	snap, err := l.Reload(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.NCMMaster, 1)
	assert.Len(t, snap.IBSTransition, 1)
}

func TestWatcherTriggersReload(t *testing.T) {
	dir := t.TempDir()
	seedTables(t, dir)

	l := NewLoader(dir, zap.NewNop())
	_, err := l.Reload(context.Background())
	require.NoError(t, err)
	before := l.Current().LoadedAt

	w, err := NewWatcher(l, dir, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, dir, FileIBSTransition, "ano;percentual_ibs\n2026;0,002\n")

	assert.Eventually(t, func() bool {
		return l.Current().LoadedAt.After(before)
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "0.002", l.Current().IBSTransition[0].Rate.String())
}
