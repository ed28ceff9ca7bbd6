package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"antygravity/internal/domain"
)

var (
	criticalColor = color.New(color.FgRed, color.Bold)
	highColor     = color.New(color.FgMagenta, color.Bold)
	mediumColor   = color.New(color.FgYellow)
	lowColor      = color.New(color.FgCyan)
)

func severityLabel(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return criticalColor.Sprint(s.String())
	case domain.SeverityHigh:
		return highColor.Sprint(s.String())
	case domain.SeverityMedium:
		return mediumColor.Sprint(s.String())
	}
	return lowColor.Sprint(s.String())
}

func actionLabel(action string) string {
	switch action {
	case domain.ActionKeep:
		return color.GreenString(action)
	case domain.ActionReview:
		return color.YellowString(action)
	}
	return color.RedString(action)
}

// termWidth is the stdout width, or 80 when it cannot be detected.
func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// wrap prints text word-wrapped to width.
func wrap(w io.Writer, text string, width int) error {
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > width {
			if _, err := fmt.Fprintln(w, line.String()); err != nil {
				return err
			}
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		_, err := fmt.Fprintln(w, line.String())
		return err
	}
	return nil
}
