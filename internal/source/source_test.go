package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSystemPrompt(t *testing.T) {
	builtin, err := New("").GetSystemPrompt()
	require.NoError(t, err)
	assert.Contains(t, builtin, "InsertAfter")

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("custom rules"), 0o644))
	custom, err := New(path).GetSystemPrompt()
	require.NoError(t, err)
	assert.Equal(t, "custom rules", custom)

	_, err = New(filepath.Join(t.TempDir(), "missing.txt")).GetSystemPrompt()
	assert.Error(t, err)
}

func TestBuildFixPrompt(t *testing.T) {
	prompt := BuildFixPrompt([]string{"import sys\n", "print(x)"}, []string{"2", "a b"}, "NameError: name 'x' is not defined")

	assert.Contains(t, prompt, "1: import sys\n2: print(x)\n")
	assert.Contains(t, prompt, `["2" "a b"]`)
	assert.Contains(t, prompt, "NameError: name 'x' is not defined\n")
}
