// Command mvp-import converts a league MVP page or PDF export into the
// players.json format the analysis server loads.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/importer"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// Version is set during build using ldflags
var version = "dev"

func main() {
	logger.InitWithWriter(os.Stderr)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("mvp-import", flag.ContinueOnError)
	in := fs.String("in", "", "Source: .html/.htm file, .pdf/.txt file, or http(s) URL")
	out := fs.String("out", "", "Output JSON file (default: stdout)")
	format := fs.String("format", "", "Force input format: html, pdf or text (default: from extension)")
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout for URL sources")
	versionFlag := fs.Bool("version", false, "Print version information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *versionFlag {
		fmt.Fprintf(stdout, "mvp-import version %s\n", version)
		return nil
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	records, err := load(*in, *format, *timeout)
	if err != nil {
		return err
	}
	logger.Info("Parsed MVP table", "source", *in, "players", len(records))

	if *out == "" {
		return importer.WriteJSON(stdout, records)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := importer.WriteJSON(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("Wrote dataset", "path", *out)
	return nil
}

func load(src, format string, timeout time.Duration) ([]models.PlayerRecord, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return importer.FetchHTML(ctx, nil, src)
	}

	if format == "" {
		format = detectFormat(src)
	}
	switch format {
	case "html":
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return importer.ParseHTML(f)
	case "pdf":
		text, err := importer.ReadPDFText(src)
		if err != nil {
			return nil, err
		}
		return importer.ParseText(text)
	case "text":
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		return importer.ParseText(string(b))
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "html"
	case ".pdf":
		return "pdf"
	case ".txt", ".tsv":
		return "text"
	}
	return ""
}
