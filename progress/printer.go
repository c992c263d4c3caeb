// Package progress redraws a fixed set of terminal lines in place, one per
// tracked item.
package progress

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

var ansi = regexp.MustCompile(`\x1b\[[;\d]*[A-Za-z]`)

// Printer owns the last lines of a terminal. Open reserves them by writing
// newlines; Update moves the cursor up to a line, rewrites it and moves back
// down. It is safe for concurrent use.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	lines   int
	lastLen []int
	alive   bool
}

func NewPrinter(w io.Writer, lines int) *Printer {
	return &Printer{w: w, lines: lines, lastLen: make([]int, lines)}
}

func (p *Printer) Open() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.alive = true
	io.WriteString(p.w, strings.Repeat("\n", p.lines))
}

func (p *Printer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.alive = false
}

// Update replaces line with value. Updates to a closed printer or to a line
// it doesn't own are dropped.
func (p *Printer) Update(line int, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive || line < 0 || line >= p.lines {
		return
	}

	relative := line - p.lines
	var b strings.Builder
	move(&b, relative)

	// pad with spaces to wipe what a longer previous value left behind
	l := displayLen(value)
	b.WriteString("\r")
	b.WriteString(value)
	b.WriteString(strings.Repeat(" ", max(p.lastLen[line]-l, 0)))
	p.lastLen[line] = l

	move(&b, -relative)
	io.WriteString(p.w, b.String())
}

func move(b *strings.Builder, n int) {
	switch {
	case n == 0:
	case n > 5:
		// content is needed after the escape, otherwise the cursor stays put on a blank line
		fmt.Fprintf(b, "\x1b[%dB\r", n)
	case n > 0:
		b.WriteString(strings.Repeat("\n", n))
	default:
		fmt.Fprintf(b, "\x1b[%dA", -n)
	}
}

func displayLen(s string) int {
	return utf8.RuneCountInString(ansi.ReplaceAllString(s, ""))
}

// NoOp discards every update.
type NoOp struct{}

func (NoOp) Update(int, string) {}
