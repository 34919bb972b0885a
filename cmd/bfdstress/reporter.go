// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh/terminal"
)

// NewStdoutReporter returns a reporter for os.Stdout. A terminal gets
// a status line redrawn in place. Anything else gets a line of
// progress per second.
func NewStdoutReporter() StressReporter {
	if os.Getenv("TERM") == "" || os.Getenv("TERM") == "dumb" || !terminal.IsTerminal(int(os.Stdout.Fd())) {
		return &lineReporter{w: os.Stdout, every: time.Second}
	}
	return &statusLineReporter{w: os.Stdout, every: time.Second / 10}
}

// lineReporter prints progress at most once per interval, and only
// when it has changed.
type lineReporter struct {
	w     io.Writer
	every time.Duration

	mu     sync.Mutex
	last   time.Time
	latest Progress
	shown  Progress
}

func (r *lineReporter) StartStatus() {}

// StopStatus prints the final progress if it has not been shown.
func (r *lineReporter) StopStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest != r.shown {
		r.show()
	}
	r.last = time.Time{}
}

func (r *lineReporter) Status(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = p
	if p != r.shown && time.Since(r.last) >= r.every {
		r.show()
	}
}

func (r *lineReporter) show() {
	r.last, r.shown = time.Now(), r.latest
	fmt.Fprintln(r.w, r.latest)
}

func (r *lineReporter) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Write(data)
}

// statusLineReporter keeps progress on the terminal's last line and
// redraws it at most once per interval, with a spinner that turns
// even when nothing changes. Output written through it scrolls above
// the status line.
type statusLineReporter struct {
	w     io.Writer
	every time.Duration

	mu     sync.Mutex
	latest Progress
	dirty  bool
	spin   int

	stop chan struct{}
	done chan struct{}
}

// VT100 control sequences
const (
	resetLine = "\r\x1b[2K"
	wrapOff   = "\x1b[?7l"
	moveEOL   = "\x1b[999C"
	wrapOn    = "\x1b[?7h"
)

const (
	spinner = `-\|/`
	// The spinner turns once every spinTicks redraw intervals.
	spinTicks = 5
)

func (r *statusLineReporter) StartStatus() {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.redraw()
}

// StopStatus leaves the final progress in the scrollback.
func (r *statusLineReporter) StopStatus() {
	close(r.stop)
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s%s%v%s\n", resetLine, wrapOff, r.latest, wrapOn)
}

func (r *statusLineReporter) Status(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p != r.latest {
		r.latest, r.dirty = p, true
	}
}

func (r *statusLineReporter) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s%s", resetLine, wrapOn)
	n, err := r.w.Write(data)
	r.dirty = true
	return n, err
}

// draw prints the status line. r.mu must be held.
func (r *statusLineReporter) draw() {
	fmt.Fprintf(r.w, "%s%s%v%s%c", resetLine, wrapOff, r.latest, moveEOL, spinner[r.spin%len(spinner)])
	r.dirty = false
}

func (r *statusLineReporter) redraw() {
	defer close(r.done)
	tick := time.NewTicker(r.every)
	defer tick.Stop()
	for n := 1; ; n++ {
		select {
		case <-tick.C:
		case <-r.stop:
			return
		}
		r.mu.Lock()
		if n%spinTicks == 0 {
			r.spin++
			r.dirty = true
		}
		if r.dirty {
			r.draw()
		}
		r.mu.Unlock()
	}
}
