package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/sokinpui/mend.go/cli"
	"github.com/sokinpui/mend.go/internal/app"
	"github.com/sokinpui/mend.go/internal/llm"
	"github.com/sokinpui/mend.go/internal/logging"
	"github.com/sokinpui/mend.go/internal/tui"
	"github.com/sokinpui/mend.go/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one mend session and returns the process exit code: 0 when
// the script ends up passing or a patch is declined, 1 otherwise.
func run(args []string) int {
	cfg, err := cli.ParseArgs(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	closer, err := logging.Setup(logging.Options{Verbose: cfg.Verbose, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	var client llm.Client
	if !cfg.Revert {
		client, err = llm.New(llm.Options{
			Provider:      llm.Provider(cfg.Provider),
			OllamaHost:    cfg.OllamaHost,
			OpenAIKey:     cfg.OpenAIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			ui.Error("Failed to configure model backend: %v", err)
			return 1
		}
	}

	application, err := app.New(cfg, client)
	if err != nil {
		ui.Error("Failed to initialize application: %v", err)
		return 1
	}
	if !cfg.NoAnimation && isatty.IsTerminal(os.Stderr.Fd()) {
		application.SetExchange(tui.Spin)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := application.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			ui.Warning("Interrupted.")
			return 1
		}
		ui.Error("Error: %v", err)
		var detailed *app.DetailedError
		if errors.As(err, &detailed) && cfg.Verbose {
			fmt.Fprintf(os.Stderr, "%s\n", detailed.Stack)
		}
		return 1
	}
	return 0
}
