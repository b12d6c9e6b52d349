// Command docqa answers a question about a PDF and prints the answer with
// the pages it was drawn from.
//
//	docqa -file numpy-ref.pdf -question "What are the contents of this book?"
//	docqa -file scan.pdf -pages
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docreader/internal/app"
	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/document"
	"github.com/nikhilbhutani/docreader/internal/reader"
)

func main() {
	var (
		file      = flag.String("file", "", "PDF to read (required)")
		question  = flag.String("question", "", "question to answer")
		pagesOnly = flag.Bool("pages", false, "print the extracted text of every page and exit")
		strict    = flag.Bool("strict", false, "with -pages, fail instead of printing empty text when OCR fails")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "docqa: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		fatal("load config", err)
	}
	app.SetupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *pagesOnly {
		var opts []document.Option
		if *strict {
			opts = append(opts, document.WithStrictFailures())
		}
		pages, err := document.NewExtractorFromConfig(cfg.OCR, opts...).Extract(ctx, document.Path(*file))
		if err != nil {
			fatal("extract", err)
		}
		printJSON(pages)
		return
	}

	if err := cfg.Validate(); err != nil {
		fatal("config", err)
	}
	svc, err := app.NewServices(ctx, cfg)
	if err != nil {
		fatal("setup", err)
	}
	defer svc.Close()

	res, err := svc.Reader.Read(ctx, reader.ReadRequest{
		Filename: filepath.Base(*file),
		Source:   document.Path(*file),
		Question: *question,
	})
	if err != nil {
		svc.Close()
		fatal("read", err)
	}
	printJSON(res)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("write output", err)
	}
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "docqa: %s: %v\n", step, err)
	os.Exit(1)
}
