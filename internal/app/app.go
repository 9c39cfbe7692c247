package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"

	"github.com/sokinpui/mend.go/cli"
	"github.com/sokinpui/mend.go/internal/fs"
	"github.com/sokinpui/mend.go/internal/llm"
	"github.com/sokinpui/mend.go/internal/parser"
	"github.com/sokinpui/mend.go/internal/patcher"
	"github.com/sokinpui/mend.go/internal/runner"
	"github.com/sokinpui/mend.go/internal/source"
	"github.com/sokinpui/mend.go/internal/state"
	"github.com/sokinpui/mend.go/internal/ui"
	"github.com/sokinpui/mend.go/internal/validator"
	"github.com/sokinpui/mend.go/model"
)

var (
	// ErrMaxCycles is returned when the script still fails after the
	// configured number of fix cycles.
	ErrMaxCycles = errors.New("script still failing after maximum fix cycles")
	// ErrDeclined is returned when the operator rejects a patch.
	ErrDeclined = errors.New("patch declined")
)

// ScriptRunner executes the target once.
type ScriptRunner interface {
	Run(ctx context.Context, script string, args []string) (runner.Result, error)
}

// App orchestrates the entire application logic.
type App struct {
	cfg            *cli.Config
	script         string
	stateManager   *state.Manager
	sourceProvider *source.SourceProvider
	runner         ScriptRunner
	validator      *validator.Validator

	confirm       func(question string) bool
	copyClipboard func(text string) error
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error { return e.Err }

// New creates a new App instance. client may be nil in revert mode.
func New(cfg *cli.Config, client llm.Client) (*App, error) {
	script := fs.NewPathResolver(nil).ResolveExisting(cfg.Script)
	if script == "" && !cfg.Revert {
		return nil, fmt.Errorf("script not found: %s", cfg.Script)
	}
	if script == "" {
		// Revert can recreate a deleted target from its backup.
		script = cfg.Script
	}
	if client == nil && !cfg.Revert {
		return nil, errors.New("no model client configured")
	}

	return &App{
		cfg:            cfg,
		script:         script,
		stateManager:   state.New(script),
		sourceProvider: source.New(cfg.PromptFile),
		runner:         runner.New(cfg.Interpreters, cfg.Timeout),
		validator:      validator.New(client),
		confirm:        ui.Confirm,
		copyClipboard:  clipboard.WriteAll,
	}, nil
}

// SetExchange wraps every model round trip, e.g. with a spinner.
func (a *App) SetExchange(exchange validator.Exchange) {
	a.validator.SetExchange(exchange)
}

// Execute runs the revert or the self-healing loop, depending on the flags.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	if a.cfg.Revert {
		return a.revert()
	}
	return a.heal(ctx)
}

// revert restores the target from its backup.
func (a *App) revert() (model.Summary, error) {
	if err := a.stateManager.Restore(); err != nil {
		return model.Summary{Target: a.script}, err
	}
	ui.PrintRevertSummary(a.script, a.stateManager.BackupPath())
	return model.Summary{
		Target:   a.script,
		Reverted: true,
		Message:  "Reverted from backup.",
	}, nil
}

// heal runs the script until it exits cleanly, patching it after every
// failure.
func (a *App) heal(ctx context.Context) (model.Summary, error) {
	summary := model.Summary{Target: a.script}

	if err := a.stateManager.Backup(); err != nil {
		return summary, err
	}
	ui.Info("Backed up %s to %s", a.script, a.stateManager.BackupPath())

	systemPrompt, err := a.sourceProvider.GetSystemPrompt()
	if err != nil {
		return summary, err
	}

	for {
		res, err := a.runner.Run(ctx, a.script, a.cfg.Args)
		if err != nil {
			return summary, err
		}
		log.Debugf("run %d of %s: exit=%d in %s", summary.Cycles+1, a.script, res.ExitCode, res.Duration)

		if !res.Failed() {
			summary.Output = res.Output
			ui.Success("Script ran successfully.")
			ui.Plain(res.Output)
			ui.PrintRunSummary(a.script, summary.Cycles)
			return summary, nil
		}

		ui.Error("Script crashed (exit status %d). Trying to fix...", res.ExitCode)
		ui.Plain(res.Output)

		if a.cfg.MaxCycles > 0 && summary.Cycles >= a.cfg.MaxCycles {
			return summary, fmt.Errorf("%w (%d)", ErrMaxCycles, a.cfg.MaxCycles)
		}

		err = a.fix(ctx, systemPrompt, res)
		if errors.Is(err, ErrDeclined) {
			summary.Declined = true
			summary.Message = "Changes not applied."
			ui.Warning("Changes not applied.")
			return summary, nil
		}
		if err != nil {
			return summary, err
		}
		summary.Cycles++
	}
}

// fix asks the model for a patch for one failed run and writes it.
func (a *App) fix(ctx context.Context, systemPrompt string, res runner.Result) error {
	lines, err := fs.ReadLines(a.script)
	if err != nil {
		return err
	}

	conv := model.NewConversation(systemPrompt, source.BuildFixPrompt(lines, a.cfg.Args, res.Output))
	batch, err := a.validator.Validate(ctx, a.cfg.Model, conv, a.cfg.Retries)
	if err != nil {
		return err
	}

	entries, err := parser.Project(batch)
	if err != nil {
		return err
	}
	edits, explanations := parser.Split(entries)

	result, err := patcher.Apply(lines, edits)
	if err != nil {
		return err
	}

	ui.PrintExplanations(explanations)
	ui.PrintDiff(result.Diff)

	if a.cfg.Confirm && result.Changed() && !a.confirm("Do you want to apply these changes?") {
		return ErrDeclined
	}

	if !result.Changed() {
		log.Debugf("model returned no edits for %s", a.script)
		return nil
	}
	if err := fs.WriteLines(a.script, result.Lines); err != nil {
		return err
	}
	ui.Success("Changes applied.")

	if a.cfg.CopyDiff {
		if err := a.copyClipboard(result.Diff); err != nil {
			ui.Warning("Could not copy the diff to the clipboard: %v", err)
		}
	}
	return nil
}
