package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// DefaultInterpreters maps a script extension to the command that runs it.
var DefaultInterpreters = map[string][]string{
	".py":  {"python3"},
	".js":  {"node"},
	".mjs": {"node"},
	".cjs": {"node"},
	".sh":  {"bash"},
	".rb":  {"ruby"},
	".go":  {"go", "run"},
}

// Result is what the loop needs to know about one run of the target.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Failed reports whether the target exited with a non-zero status.
func (r Result) Failed() bool { return r.ExitCode != 0 }

// Runner executes the target script.
type Runner struct {
	interpreters map[string][]string
	timeout      time.Duration
}

// New creates a Runner. overrides replace entries of DefaultInterpreters;
// a zero timeout waits for the target indefinitely.
func New(overrides map[string][]string, timeout time.Duration) *Runner {
	interpreters := make(map[string][]string, len(DefaultInterpreters)+len(overrides))
	for ext, cmd := range DefaultInterpreters {
		interpreters[ext] = cmd
	}
	for ext, cmd := range overrides {
		if ext != "" && ext[0] != '.' {
			ext = "." + ext
		}
		interpreters[strings.ToLower(ext)] = cmd
	}
	return &Runner{interpreters: interpreters, timeout: timeout}
}

// Command returns the argv used to run script with args.
func (r *Runner) Command(script string, args []string) []string {
	argv := []string{script}
	if interp, ok := r.interpreters[strings.ToLower(filepath.Ext(script))]; ok && len(interp) > 0 {
		argv = append(append([]string{}, interp...), script)
	} else if !strings.ContainsRune(script, filepath.Separator) {
		argv = []string{"." + string(filepath.Separator) + script}
	}
	return append(argv, args...)
}

// Run executes the script and captures its combined stdout and stderr.
// A non-zero exit is reported in the Result, not as an error; err is only
// set when the process could not be started or ctx was cancelled.
func (r *Runner) Run(ctx context.Context, script string, args []string) (Result, error) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	argv := r.Command(script, args)
	log.Debugf("running target: %s", strings.Join(argv, " "))

	cmd := execCommand(runCtx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = os.Environ()
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: out.String(), Duration: time.Since(start)}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
		res.Output += fmt.Sprintf("\nProcess killed after exceeding the %s timeout.\n", r.timeout)
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	log.Debugf("target exited with %d after %s", res.ExitCode, res.Duration)
	return res, nil
}
