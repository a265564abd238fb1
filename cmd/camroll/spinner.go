package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mmcdole/camroll/internal/tui/styles"
	"golang.org/x/term"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                        \r"

// withSpinner runs fn, animating a spinner on stderr when it is a terminal
func withSpinner(label string, fn func() error) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	frame := 0
	fmt.Fprintf(os.Stderr, "\r%s %s", styles.SpinnerFrames[frame], label)

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Fprint(os.Stderr, clearSpinnerLine)
			return err
		case <-ticker.C:
			frame++
			fmt.Fprintf(os.Stderr, "\r%s %s", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)], label)
		}
	}
}
