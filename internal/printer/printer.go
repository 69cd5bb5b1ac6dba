// Package printer renders human-facing CLI output.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/criterio"
	"golang.org/x/term"

	"github.com/colonyops/parley/internal/core/chat"
)

// Tokyo Night palette
var (
	colorRed    = lipgloss.Color("#f7768e")
	colorGreen  = lipgloss.Color("#9ece6a")
	colorYellow = lipgloss.Color("#e0af68")
	colorBlue   = lipgloss.Color("#7aa2f7")
	colorGray   = lipgloss.Color("#565f89")
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
)

type ctxKey struct{}

// Printer handles formatted output with colors and styles. Colors are only
// emitted when the writer is a terminal.
type Printer struct {
	writer io.Writer
	color  bool

	red, green, yellow, blue, gray, bold lipgloss.Style
}

// New creates a new Printer that writes to the given writer.
func New(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}

	r := lipgloss.NewRenderer(w)
	return &Printer{
		writer: w,
		color:  color,
		red:    r.NewStyle().Foreground(colorRed),
		green:  r.NewStyle().Foreground(colorGreen),
		yellow: r.NewStyle().Foreground(colorYellow),
		blue:   r.NewStyle().Foreground(colorBlue).Bold(true),
		gray:   r.NewStyle().Foreground(colorGray),
		bold:   r.NewStyle().Bold(true),
	}
}

// NewContext returns a context with the printer attached.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates a default one.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) line(s string) {
	_, _ = io.WriteString(p.writer, s+"\n")
}

// FatalError prints a formatted error box and does NOT exit.
// Caller should handle exit code.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.printValidationErrors(err, fieldErrs)
		return
	}

	p.line(p.style(p.red, "╭ Error"))
	p.line(p.style(p.red, "│") + " " + p.style(p.gray, err.Error()))
	p.line(p.style(p.red, "╵"))
}

func (p *Printer) printValidationErrors(wrappedErr error, fieldErrs criterio.FieldErrors) {
	// Keep the wrapping context, e.g. "load config: invalid config"
	errStr := wrappedErr.Error()
	errContext := ""
	if idx := strings.Index(errStr, fieldErrs.Error()); idx > 0 {
		errContext = strings.TrimSuffix(errStr[:idx], ": ")
	}

	p.line(p.style(p.red, "╭ Validation Error"))
	if errContext != "" {
		p.line(p.style(p.red, "│") + " " + p.style(p.gray, errContext))
		p.line(p.style(p.red, "│"))
	}

	for _, fe := range fieldErrs {
		line := p.style(p.red, "│") + " " + p.style(p.red, Cross) + " "
		if fe.Field != "" {
			line += p.style(p.gray, fe.Field+": ")
		}
		line += fe.Err.Error()
		p.line(line)
	}

	p.line(p.style(p.red, "╵"))
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.style(p.red, Cross+" "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(p.style(p.green, Check+" "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(p.style(p.gray, Dot+" "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.style(p.yellow, Dot+" "+fmt.Sprintf(format, args...)))
}

// Printf prints a plain message without colors.
func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

// Section prints a bold section header.
func (p *Printer) Section(title string) {
	p.line(p.style(p.bold.Underline(true), title))
}

// Item prints a labelled detail line.
func (p *Printer) Item(label, detail string) {
	p.line("  " + p.style(p.gray, label+":") + " " + detail)
}

// Message prints one chat message on a single line. sender is shown when
// non-empty, otherwise the sender id.
func (p *Printer) Message(m chat.Message, sender string) {
	if sender == "" {
		sender = fmt.Sprintf("#%d", m.SenderID)
	}

	var b strings.Builder
	b.WriteString(p.style(p.gray, m.SentAt.Local().Format(time.TimeOnly)))
	b.WriteString(" ")
	b.WriteString(p.style(p.blue, sender))
	if m.ReplyTo != nil {
		b.WriteString(p.style(p.gray, fmt.Sprintf(" ↪%d", *m.ReplyTo)))
	}
	b.WriteString(" ")
	if m.IsMedia {
		b.WriteString(p.style(p.yellow, "[media] "))
	}
	b.WriteString(m.Content)
	if m.EditedAt != nil {
		b.WriteString(p.style(p.gray, " (edited)"))
	}
	p.line(b.String())
}
