// pkg/report/styles.go

package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
)

const (
	colorGreen  = "42"
	colorYellow = "220"
	colorRed    = "196"
	colorGray   = "245"
	colorCyan   = "45"
)

// Styles holds the console styles.
type Styles struct {
	Pass    lipgloss.Style
	Warn    lipgloss.Style
	Fail    lipgloss.Style
	Skipped lipgloss.Style
	Header  lipgloss.Style
	Dim     lipgloss.Style
	Notice  lipgloss.Style
}

// DefaultStyles returns coloured styles.
func DefaultStyles() Styles {
	badge := lipgloss.NewStyle().Bold(true)
	return Styles{
		Pass:    badge.Foreground(lipgloss.Color(colorGreen)),
		Warn:    badge.Foreground(lipgloss.Color(colorYellow)),
		Fail:    badge.Foreground(lipgloss.Color(colorRed)),
		Skipped: badge.Foreground(lipgloss.Color(colorGray)),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorCyan)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Notice:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorYellow)),
	}
}

// PlainStyles returns unstyled output for pipes and NO_COLOR.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Pass:    plain,
		Warn:    plain,
		Fail:    plain,
		Skipped: plain,
		Header:  plain,
		Dim:     plain,
		Notice:  plain,
	}
}

// Badge renders the outcome tag of a line, e.g. "[PASS]".
func (s Styles) Badge(o check.Outcome) string {
	style := s.Skipped
	switch o {
	case check.Pass:
		style = s.Pass
	case check.Warn:
		style = s.Warn
	case check.Fail:
		style = s.Fail
	}
	return style.Render("[" + o.String() + "]")
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// NoColor checks if the NO_COLOR environment variable is set.
func NoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
