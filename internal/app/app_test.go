package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/mend.go/cli"
	"github.com/sokinpui/mend.go/internal/patcher"
	"github.com/sokinpui/mend.go/internal/runner"
	"github.com/sokinpui/mend.go/internal/state"
	"github.com/sokinpui/mend.go/internal/ui"
	"github.com/sokinpui/mend.go/internal/validator"
	"github.com/sokinpui/mend.go/model"
)

// fakeClient replays replies in order, repeating the last one.
type fakeClient struct {
	replies []string
	calls   int
}

func (c *fakeClient) Chat(_ context.Context, _ string, _ []model.Message) (string, error) {
	c.calls++
	i := c.calls - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

// fileRunner fails while the script still contains "bug".
type fileRunner struct {
	runs int
}

func (r *fileRunner) Run(_ context.Context, script string, _ []string) (runner.Result, error) {
	r.runs++
	data, err := os.ReadFile(script)
	if err != nil {
		return runner.Result{}, err
	}
	if strings.Contains(string(data), "bug") {
		return runner.Result{Output: "NameError: name 'bug' is not defined\n", ExitCode: 1}, nil
	}
	return runner.Result{Output: "ok\n"}, nil
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string, []string) (runner.Result, error) {
	panic("boom")
}

func quietUI(t *testing.T) {
	t.Helper()
	old := ui.Out
	ui.Out = &bytes.Buffer{}
	t.Cleanup(func() { ui.Out = old })
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buggy.py")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg *cli.Config, client *fakeClient) (*App, *fileRunner) {
	t.Helper()
	quietUI(t)
	if cfg.Retries == 0 {
		cfg.Retries = validator.Unlimited
	}
	a, err := New(cfg, client)
	require.NoError(t, err)
	r := &fileRunner{}
	a.runner = r
	return a, r
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const replaceBug = `[{"operation": "Replace", "line": 2, "content": "print('fixed')"}, {"explanation": "bug was undefined"}]`

func TestExecuteSucceedsWithoutModel(t *testing.T) {
	script := writeScript(t, "print('hi')\n")
	client := &fakeClient{replies: []string{"[]"}}
	a, r := newTestApp(t, &cli.Config{Script: script}, client)

	summary, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Cycles)
	assert.Equal(t, "ok\n", summary.Output)
	assert.Equal(t, 1, r.runs)
	assert.Equal(t, 0, client.calls)
	assert.FileExists(t, script+state.BackupSuffix)
}

func TestExecuteFixesAndReruns(t *testing.T) {
	script := writeScript(t, "import sys\nbug\nprint('done')\n")
	client := &fakeClient{replies: []string{"Here is the fix:\n" + replaceBug}}
	a, r := newTestApp(t, &cli.Config{Script: script}, client)

	summary, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cycles)
	assert.Equal(t, 2, r.runs)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "import sys\nprint('fixed')\nprint('done')\n", readFile(t, script))
	assert.Equal(t, "import sys\nbug\nprint('done')\n", readFile(t, script+state.BackupSuffix))
}

func TestExecuteDeclineLeavesScriptUntouched(t *testing.T) {
	original := "import sys\nbug\n"
	script := writeScript(t, original)
	client := &fakeClient{replies: []string{replaceBug}}
	a, r := newTestApp(t, &cli.Config{Script: script, Confirm: true}, client)
	var asked string
	a.confirm = func(q string) bool { asked = q; return false }

	summary, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Declined)
	assert.NotEmpty(t, asked)
	assert.Equal(t, 1, r.runs)
	assert.Equal(t, original, readFile(t, script))
}

func TestExecuteConfirmAccepted(t *testing.T) {
	script := writeScript(t, "import sys\nbug\n")
	client := &fakeClient{replies: []string{replaceBug}}
	a, _ := newTestApp(t, &cli.Config{Script: script, Confirm: true}, client)
	a.confirm = func(string) bool { return true }

	summary, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Declined)
	assert.Equal(t, "import sys\nprint('fixed')\n", readFile(t, script))
}

func TestExecuteSkipsConfirmForEmptyPatch(t *testing.T) {
	original := "bug\n"
	script := writeScript(t, original)
	client := &fakeClient{replies: []string{`[{"explanation": "nothing to change"}]`}}
	a, _ := newTestApp(t, &cli.Config{Script: script, Confirm: true, MaxCycles: 1}, client)
	asked := 0
	a.confirm = func(string) bool { asked++; return true }

	summary, err := a.Execute(context.Background())
	assert.ErrorIs(t, err, ErrMaxCycles)
	assert.False(t, summary.Declined)
	assert.Zero(t, asked)
	assert.Equal(t, original, readFile(t, script))
}

func TestExecuteStopsAfterMaxCycles(t *testing.T) {
	original := "bug\n"
	script := writeScript(t, original)
	// Commentary only: the buffer never changes.
	client := &fakeClient{replies: []string{`[{"explanation": "looks fine to me"}]`}}
	a, r := newTestApp(t, &cli.Config{Script: script, MaxCycles: 2}, client)

	summary, err := a.Execute(context.Background())
	assert.ErrorIs(t, err, ErrMaxCycles)
	assert.Equal(t, 2, summary.Cycles)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, 3, r.runs)
	assert.Equal(t, original, readFile(t, script))
}

func TestExecuteExhaustedRetries(t *testing.T) {
	original := "bug\n"
	script := writeScript(t, original)
	client := &fakeClient{replies: []string{"I cannot help with that."}}
	a, _ := newTestApp(t, &cli.Config{Script: script, Retries: 3}, client)

	_, err := a.Execute(context.Background())
	assert.ErrorIs(t, err, validator.ErrExhaustedRetries)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, original, readFile(t, script))
}

func TestExecuteMalformedEditIsFatal(t *testing.T) {
	original := "a\nbug\n"
	script := writeScript(t, original)
	client := &fakeClient{replies: []string{`[{"operation": "Delete", "line": 9}]`}}
	a, _ := newTestApp(t, &cli.Config{Script: script}, client)

	_, err := a.Execute(context.Background())
	assert.ErrorIs(t, err, patcher.ErrMalformedEdit)
	assert.Equal(t, original, readFile(t, script))
}

func TestExecuteCopiesDiff(t *testing.T) {
	script := writeScript(t, "import sys\nbug\n")
	client := &fakeClient{replies: []string{replaceBug}}
	a, _ := newTestApp(t, &cli.Config{Script: script, CopyDiff: true}, client)
	var copied string
	a.copyClipboard = func(text string) error { copied = text; return nil }

	_, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.Contains(t, copied, "-bug\n")
	assert.Contains(t, copied, "+print('fixed')\n")
}

func TestExecuteClipboardFailureIsNotFatal(t *testing.T) {
	script := writeScript(t, "bug\n")
	client := &fakeClient{replies: []string{`[{"operation": "Replace", "line": 1, "content": "pass"}]`}}
	a, _ := newTestApp(t, &cli.Config{Script: script, CopyDiff: true}, client)
	a.copyClipboard = func(string) error { return errors.New("no clipboard utility") }

	summary, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cycles)
}

func TestRevertRoundTrip(t *testing.T) {
	original := "import sys\nbug\nprint('done')\n"
	script := writeScript(t, original)
	client := &fakeClient{replies: []string{replaceBug}}
	a, _ := newTestApp(t, &cli.Config{Script: script}, client)

	_, err := a.Execute(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, original, readFile(t, script))

	reverter, err := New(&cli.Config{Script: script, Revert: true}, nil)
	require.NoError(t, err)
	summary, err := reverter.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Reverted)
	assert.Equal(t, original, readFile(t, script))
}

func TestRevertWithoutBackup(t *testing.T) {
	quietUI(t)
	script := writeScript(t, "print('hi')\n")

	a, err := New(&cli.Config{Script: script, Revert: true}, nil)
	require.NoError(t, err)
	_, err = a.Execute(context.Background())
	assert.ErrorIs(t, err, state.ErrNoBackupFound)
}

func TestNewRequiresExistingScript(t *testing.T) {
	_, err := New(&cli.Config{Script: filepath.Join(t.TempDir(), "missing.py")}, &fakeClient{})
	assert.Error(t, err)
}

func TestExecuteRecoversPanics(t *testing.T) {
	script := writeScript(t, "bug\n")
	a, _ := newTestApp(t, &cli.Config{Script: script}, &fakeClient{replies: []string{"[]"}})
	a.runner = panicRunner{}

	_, err := a.Execute(context.Background())
	var detailed *DetailedError
	require.ErrorAs(t, err, &detailed)
	assert.Contains(t, detailed.Error(), "boom")
	assert.NotEmpty(t, detailed.Stack)
}

func TestExecuteWithShellRunner(t *testing.T) {
	quietUI(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "task.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo starting\nexit 3\n"), 0o755))

	client := &fakeClient{replies: []string{"```json\n[{\"operation\": \"Replace\", \"line\": 2, \"content\": \"exit 0\"}]\n```"}}
	cfg := &cli.Config{
		Script:       script,
		Retries:      validator.Unlimited,
		Interpreters: map[string][]string{"sh": {"sh"}},
	}
	a, err := New(cfg, client)
	require.NoError(t, err)

	summary, err := a.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cycles)
	assert.Equal(t, "starting\n", summary.Output)
	assert.Equal(t, "echo starting\nexit 0\n", readFile(t, script))
}
