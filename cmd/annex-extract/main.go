package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cclastrib/backend/internal/annex"
	"github.com/cclastrib/backend/internal/infrastructure/logger"
)

// annex-extract converts the annex tables of the LC 214/2025 statute
// HTML into the semicolon CSV files served from the data directory.
func main() {
	var (
		htmlPath string
		outDir   string
		logLevel string
	)
	flag.StringVar(&htmlPath, "html", "data/lei/lc214_2025.html", "Path to the statute HTML file")
	flag.StringVar(&outDir, "out", "data/anexos", "Output directory for the annex CSV files")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	f, err := os.Open(htmlPath)
	if err != nil {
		log.Fatal("Failed to open statute HTML", zap.String("path", htmlPath), zap.Error(err))
	}
	defer f.Close()

	annexes, err := annex.Extract(f)
	if err != nil {
		log.Fatal("Failed to parse statute HTML", zap.Error(err))
	}
	if len(annexes) == 0 {
		log.Warn("No annex tables found", zap.String("path", htmlPath))
		return
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatal("Failed to create output directory", zap.String("dir", outDir), zap.Error(err))
	}

	for _, a := range annexes {
		outPath := filepath.Join(outDir, a.FileName())
		out, err := os.Create(outPath)
		if err != nil {
			log.Fatal("Failed to create CSV file", zap.String("path", outPath), zap.Error(err))
		}
		if err := annex.WriteCSV(out, a); err != nil {
			out.Close()
			log.Fatal("Failed to write CSV file", zap.String("path", outPath), zap.Error(err))
		}
		if err := out.Close(); err != nil {
			log.Fatal("Failed to close CSV file", zap.String("path", outPath), zap.Error(err))
		}
		log.Info("Annex extracted",
			zap.String("annex", a.Title),
			zap.Int("rows", len(a.Rows)),
			zap.String("file", outPath))
	}

	log.Info("Extraction complete", zap.Int("annexes", len(annexes)))
}
