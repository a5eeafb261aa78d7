// Package errors provides error formatting and display functions.
// Renders RikuganErrors with color coding for TTY output.
package errors

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m" // Error type/code
	colorYellow = "\033[33m" // Context information
	colorDim    = "\033[90m" // Secondary/cause info
	colorBold   = "\033[1m"  // Emphasis
)

// Formatter handles error display with optional color support.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	// When false, output is plain text suitable for logs.
	UseColor bool

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// Indent is the prefix for context lines.
	Indent string
}

// DefaultFormatter returns a Formatter configured for standard error output.
// Color is enabled if stderr is a TTY.
func DefaultFormatter() *Formatter {
	return &Formatter{
		UseColor: IsTTY(os.Stderr),
		Writer:   os.Stderr,
		Indent:   "  ",
	}
}

// IsTTY returns true if the given file is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Format renders an error with the default formatter settings.
func Format(err error) string {
	return DefaultFormatter().Format(err)
}

// Format renders an error with color coding based on formatter settings.
// For RikuganError, displays code, message, context, and cause.
// For standard errors, displays a simple error message.
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}

	re, ok := AsRikuganError(err)
	if !ok {
		return f.formatStandardError(err)
	}
	return f.formatRikuganError(re)
}

// Print writes the formatted error to the configured writer.
func (f *Formatter) Print(err error) {
	if err == nil {
		return
	}
	w := f.Writer
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, f.Format(err))
}

func (f *Formatter) formatStandardError(err error) string {
	if f.UseColor {
		return fmt.Sprintf("%serror:%s %v", colorRed, colorReset, err)
	}
	return fmt.Sprintf("error: %v", err)
}

func (f *Formatter) formatRikuganError(re *RikuganError) string {
	var b strings.Builder

	if f.UseColor {
		b.WriteString(colorRed + colorBold)
		b.WriteString(re.Code)
		b.WriteString(colorReset)
		b.WriteString(": ")
		b.WriteString(re.Message)
	} else {
		b.WriteString(re.Code)
		b.WriteString(": ")
		b.WriteString(re.Message)
	}

	if re.HasContext() {
		keys := make([]string, 0, len(re.Context))
		for k := range re.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("\n")
			b.WriteString(f.Indent)
			if f.UseColor {
				b.WriteString(colorYellow)
				b.WriteString(k)
				b.WriteString(colorReset)
			} else {
				b.WriteString(k)
			}
			b.WriteString(": ")
			b.WriteString(re.Context[k])
		}
	}

	if re.Cause != nil {
		b.WriteString("\n")
		b.WriteString(f.Indent)
		if f.UseColor {
			b.WriteString(colorDim)
			b.WriteString("caused by: ")
			b.WriteString(re.Cause.Error())
			b.WriteString(colorReset)
		} else {
			b.WriteString("caused by: ")
			b.WriteString(re.Cause.Error())
		}
	}

	return b.String()
}
