package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/byte4ever/lendguard"
)

// colorNotifier prints notifications to a terminal, one per line, with the
// title colored by severity.
type colorNotifier struct {
	w     io.Writer
	warn  *color.Color
	fault *color.Color
	mu    sync.Mutex
}

func newColorNotifier(w io.Writer, noColor bool) *colorNotifier {
	n := &colorNotifier{
		w:     w,
		warn:  color.New(color.FgYellow, color.Bold),
		fault: color.New(color.FgRed, color.Bold),
	}

	if noColor {
		n.warn.DisableColor()
		n.fault.DisableColor()
	}

	return n
}

func (n *colorNotifier) Notify(note lendguard.Notification) {
	c := n.fault
	if note.Class == lendguard.RateLimited || note.Class == lendguard.ValidationOrServerMessage {
		c = n.warn
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	fmt.Fprintf(n.w, "%s %s\n", c.Sprint(note.Title+":"), note.Message)
}
