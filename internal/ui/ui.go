package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
	NoteColor    = color.New(color.FgBlue)
	HunkColor    = color.New(color.FgCyan)
)

// Out is where operator-facing messages go.
var Out io.Writer = os.Stderr

// In is where confirmation answers are read from.
var In io.Reader = os.Stdin

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(Out, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Out, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(Out, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Out, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Out, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(Out, "  "+format+"\n", a...)
}

func Note(format string, a ...interface{}) {
	NoteColor.Fprintf(Out, format+"\n", a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptColor.Sprintf(format, a...)
}

// Plain writes uncolored text, used for captured script output.
func Plain(text string) {
	fmt.Fprint(Out, text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(Out)
	}
}

// --- Patches ---

// PrintExplanations lists the model's commentary for a patch.
func PrintExplanations(explanations []string) {
	if len(explanations) == 0 {
		return
	}
	Note("Explanations:")
	for _, e := range explanations {
		Note("- %s", e)
	}
}

// PrintDiff renders a unified diff with added lines in green and removed
// lines in red.
func PrintDiff(diff string) {
	if diff == "" {
		Info("No changes to the file.")
		return
	}
	Header("\n--- Changes to be made ---")
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			HeaderColor.Fprint(Out, line)
		case strings.HasPrefix(line, "@@"):
			HunkColor.Fprint(Out, line)
		case strings.HasPrefix(line, "+"):
			SuccessColor.Fprint(Out, line)
		case strings.HasPrefix(line, "-"):
			ErrorColor.Fprint(Out, line)
		default:
			fmt.Fprint(Out, line)
		}
	}
	if !strings.HasSuffix(diff, "\n") {
		fmt.Fprintln(Out)
	}
}

// Confirm asks a y/N question and reports whether the answer was yes.
func Confirm(question string) bool {
	fmt.Fprint(Out, Prompt("%s (y/N): ", question))
	reader := bufio.NewReader(In)
	response, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(response)) == "y"
}

// --- Summaries ---

func PrintRevertSummary(target, backup string) {
	Header("\n--- Revert Summary ---")
	Success("Reverted %s from backup:", target)
	Path("- %s", backup)
}

func PrintRunSummary(target string, cycles int) {
	Header("\n--- Run Summary ---")
	if cycles == 0 {
		Success("%s ran successfully without changes.", target)
		return
	}
	Success("%s ran successfully after %d fix cycle(s).", target, cycles)
}
