package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type checkState int

const (
	checkOK checkState = iota
	checkFail
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

const checkLabelWidth = 22

func (s checkState) label() string {
	switch s {
	case checkOK:
		return "OK"
	default:
		return "FAIL"
	}
}

func (s checkState) color() string {
	switch s {
	case checkOK:
		return ansiGreen
	default:
		return ansiRed
	}
}

// renderCheckLine formats "  Label:   [OK] detail", colored when color is set.
func renderCheckLine(label string, state checkState, detail string, color bool) string {
	marker := "[" + state.label() + "]"
	if detail != "" {
		marker += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, label+":", marker)
	if color {
		return state.color() + line + ansiReset
	}
	return line
}

// useColor reports whether w is an interactive terminal.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
