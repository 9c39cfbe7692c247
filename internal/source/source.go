package source

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/sokinpui/mend.go/internal/ui"
)

//go:embed prompt.txt
var defaultSystemPrompt string

// DefaultSystemPrompt returns the prompt compiled into the binary.
func DefaultSystemPrompt() string { return defaultSystemPrompt }

// SourceProvider supplies the system prompt that defines the response
// format the model must follow.
type SourceProvider struct {
	path string
}

// New creates a provider reading from path, or the built-in prompt when
// path is empty.
func New(path string) *SourceProvider {
	return &SourceProvider{path: path}
}

// GetSystemPrompt loads the prompt once at startup.
func (sp *SourceProvider) GetSystemPrompt() (string, error) {
	if sp.path == "" {
		return defaultSystemPrompt, nil
	}

	content, err := os.ReadFile(sp.path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		ui.Warning("System prompt %s is empty. Using the built-in prompt.", sp.path)
		return defaultSystemPrompt, nil
	}
	return string(content), nil
}

// BuildFixPrompt renders the user turn for a failed run: the numbered
// source, the arguments and the captured output.
func BuildFixPrompt(lines []string, args []string, output string) string {
	var b strings.Builder
	b.WriteString("Here is the script that needs fixing:\n\n")
	for i, line := range lines {
		fmt.Fprintf(&b, "%d: %s", i+1, line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\nHere are the arguments it was provided:\n\n")
	fmt.Fprintf(&b, "%q\n\n", args)
	b.WriteString("Here is the error message:\n\n")
	b.WriteString(output)
	if !strings.HasSuffix(output, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("Please provide your suggested changes, and remember to stick to the exact format as described above.")
	return b.String()
}
