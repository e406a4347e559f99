// Package cliui provides terminal rendering helpers (step indicators, live
// event printing, markdown) for ssechat CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	NameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("219"))
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	ReasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	ToolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with a
// ✓ or ✗ mark and the elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the content is returned unchanged together with the error.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
