// Command completion sends one extraction request to the configured Azure
// OpenAI deployment and prints the JSON it returns.
//
//	completion -input "Explain transformers." -system "You are an AI/ML expert."
//	completion -input @invoice.txt -extract-prompt "Return vendor and total."
//	completion -input - -schema invoice.schema.json < invoice.txt
//	completion -mode typed -input @notes.txt
//
// Typed mode fills a fixed summary shape (title, key points, topics)
// through a strict json_schema response format.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docreader/internal/app"
	"github.com/nikhilbhutani/docreader/internal/completion"
	"github.com/nikhilbhutani/docreader/internal/config"
)

func main() {
	var (
		input         = flag.String("input", "", `input text, "@file" to read a file, or "-" for stdin (required)`)
		system        = flag.String("system", "", "system prompt")
		extractPrompt = flag.String("extract-prompt", "", "free-text extraction instruction")
		schemaPath    = flag.String("schema", "", "path to a JSON schema the output must conform to")
		mode          = flag.String("mode", "", "freeform, schema or typed (default: schema when -extract-prompt or -schema is set, else freeform)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		fatal("load config", err)
	}
	app.SetupLogging(cfg, os.Stderr)

	text, err := readInput(*input)
	if err != nil {
		fatal("read input", err)
	}

	caller, err := completion.NewCaller(cfg.Azure)
	if err != nil {
		fatal("create caller", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{mode: *mode, system: *system, extractPrompt: *extractPrompt}
	if *schemaPath != "" {
		if opts.schema, err = os.ReadFile(*schemaPath); err != nil {
			fatal("read schema", err)
		}
	}

	out, usage, err := run(ctx, caller, text, opts)
	if err != nil {
		fatal("completion", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatal("write output", err)
	}
	slog.Info("completion done",
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"cost_usd", usage.CostUSD(),
	)
}

// summary is the shape filled by -mode typed.
type summary struct {
	Title     string   `json:"title" description:"short title for the text"`
	KeyPoints []string `json:"key_points" description:"main points, one sentence each"`
	Topics    []string `json:"topics"`
}

type options struct {
	mode          string
	system        string
	extractPrompt string
	schema        json.RawMessage
}

func resolveMode(o options) (string, error) {
	constrained := o.extractPrompt != "" || len(o.schema) > 0
	switch o.mode {
	case "":
		if constrained {
			return "schema", nil
		}
		return "freeform", nil
	case "schema":
		return o.mode, nil
	case "freeform", "typed":
		if constrained {
			return "", fmt.Errorf("-mode %s does not take -extract-prompt or -schema", o.mode)
		}
		return o.mode, nil
	default:
		return "", fmt.Errorf("unknown -mode %q", o.mode)
	}
}

func run(ctx context.Context, caller *completion.Caller, text string, o options) (any, completion.Usage, error) {
	mode, err := resolveMode(o)
	if err != nil {
		return nil, completion.Usage{}, err
	}
	switch mode {
	case "typed":
		return completion.ExtractTyped[summary](ctx, caller, text, o.system)
	case "schema":
		req, err := completion.NewSchemaRequest(text, o.system, o.extractPrompt, o.schema)
		if err != nil {
			return nil, completion.Usage{}, err
		}
		return caller.Schema(ctx, req)
	default:
		return caller.FreeForm(ctx, text, o.system)
	}
}

func readInput(arg string) (string, error) {
	switch {
	case arg == "":
		return "", fmt.Errorf("-input is required")
	case arg == "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		return string(b), err
	default:
		return arg, nil
	}
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "completion: %s: %v\n", step, err)
	os.Exit(1)
}
