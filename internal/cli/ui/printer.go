// Package ui formats the console output of the tablemap commands.
package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Style selects how a line is printed
type Style int

const (
	StyleNone Style = iota
	StyleInfo
	StyleSuccess
	StyleWarning
	StyleError
)

// Printer writes styled lines to a writer
type Printer struct {
	out     io.Writer
	noColor bool
	styles  map[Style]*color.Color
}

// NewPrinter creates a printer writing to out
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		noColor: noColor,
		styles: map[Style]*color.Color{
			StyleInfo:    color.New(color.FgCyan),
			StyleSuccess: color.New(color.FgGreen, color.Bold),
			StyleWarning: color.New(color.FgYellow, color.Bold),
			StyleError:   color.New(color.FgRed, color.Bold),
		},
	}
	for _, c := range p.styles {
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return p
}

// Writeln writes message followed by a newline
func (p *Printer) Writeln(message string, style Style) {
	p.Write(message+"\n", style)
}

// Write writes message without a trailing newline
func (p *Printer) Write(message string, style Style) {
	c, ok := p.styles[style]
	if !ok {
		fmt.Fprint(p.out, message)
		return
	}
	c.Fprint(p.out, message)
}

// Info writes an informational line
func (p *Printer) Info(format string, args ...interface{}) {
	p.Writeln(fmt.Sprintf(format, args...), StyleInfo)
}

// Success writes a success line
func (p *Printer) Success(format string, args ...interface{}) {
	p.Writeln("✓ "+fmt.Sprintf(format, args...), StyleSuccess)
}

// Warning writes a warning line
func (p *Printer) Warning(format string, args ...interface{}) {
	p.Writeln(fmt.Sprintf(format, args...), StyleWarning)
}

// Error writes an error line
func (p *Printer) Error(format string, args ...interface{}) {
	p.Writeln(fmt.Sprintf(format, args...), StyleError)
}

// List writes one " - item" line per item
func (p *Printer) List(items []string) {
	for _, item := range items {
		p.Writeln(" - "+item, StyleNone)
	}
}
