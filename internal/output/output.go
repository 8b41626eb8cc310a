package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/charmbracelet/lipgloss"
)

// Printer writes human-readable output with optional color.
type Printer struct {
	w      io.Writer
	styles styles
}

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	errs    lipgloss.Style
	dim     lipgloss.Style
	bold    lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	hunk    lipgloss.Style
}

// NewPrinter creates a Printer. Colors are enabled only when isTTY is true.
func NewPrinter(w io.Writer, isTTY bool) *Printer {
	s := styles{}
	if isTTY {
		s = styles{
			header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
			success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			errs:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			bold:    lipgloss.NewStyle().Bold(true),
			added:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			removed: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
			hunk:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		}
	}
	return &Printer{w: w, styles: s}
}

// Header prints a banner line like the original toolkit's section headers.
func (p *Printer) Header(text string) {
	bar := strings.Repeat("━", 60)
	fmt.Fprintln(p.w, p.styles.header.Render(bar))
	fmt.Fprintln(p.w, p.styles.bold.Render("  "+text))
	fmt.Fprintln(p.w, p.styles.header.Render(bar))
}

func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.success.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.warning.Render("⚠ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.errs.Render("✗ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Dimf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.dim.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Boldf(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.bold.Render(fmt.Sprintf(format, args...)))
}

// DiffLine prints one line of a unified diff with conventional coloring.
func (p *Printer) DiffLine(line string) {
	switch {
	case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
		fmt.Fprintln(p.w, p.styles.added.Render(line))
	case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
		fmt.Fprintln(p.w, p.styles.removed.Render(line))
	case strings.HasPrefix(line, "@@"):
		fmt.Fprintln(p.w, p.styles.hunk.Render(line))
	default:
		fmt.Fprintln(p.w, line)
	}
}

// EncodeJSON writes v as indented JSON.
func EncodeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// EncodeToon writes v in the LLM-friendly toon format.
func EncodeToon(w io.Writer, v any) error {
	encoded, err := gotoon.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode toon: %w", err)
	}
	_, err = fmt.Fprintln(w, encoded)
	return err
}
