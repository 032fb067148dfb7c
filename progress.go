package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tonimelisma/ocdav/internal/remote"
)

const progressInterval = 200 * time.Millisecond

// progressBoard renders one aggregated progress line for any number of
// concurrent transfers.
type progressBoard struct {
	mu     sync.Mutex
	w      io.Writer
	verb   string
	done   int64
	totals map[string]int64
	start  time.Time
	last   time.Time
	drawn  bool
	now    func() time.Time
}

func newProgressBoard(w io.Writer, verb string) *progressBoard {
	return &progressBoard{
		w:      w,
		verb:   verb,
		totals: make(map[string]int64),
		start:  time.Now(),
		now:    time.Now,
	}
}

// listener returns a listener that accounts transfers under key.
func (b *progressBoard) listener(key string) remote.ProgressListener {
	return remote.ProgressFunc(func(delta, _, total int64, _ string) {
		b.update(key, delta, total)
	})
}

func (b *progressBoard) update(key string, delta, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totals[key] = total
	b.done += delta

	now := b.now()
	if now.Sub(b.last) < progressInterval {
		return
	}

	b.last = now
	b.render(now)
}

// finish draws the final state and ends the line.
func (b *progressBoard) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.drawn {
		return
	}

	b.render(b.now())
	fmt.Fprintln(b.w)
}

func (b *progressBoard) render(now time.Time) {
	var total int64

	for _, t := range b.totals {
		if t < 0 {
			total = -1
			break
		}

		total += t
	}

	line := fmt.Sprintf("%s %s", b.verb, humanize.IBytes(uint64(b.done)))
	if total > 0 {
		line += fmt.Sprintf(" / %s (%d%%)", humanize.IBytes(uint64(total)), b.done*100/total)
	}

	if elapsed := now.Sub(b.start).Seconds(); elapsed > 0 {
		line += fmt.Sprintf("  %s/s", humanize.IBytes(uint64(float64(b.done)/elapsed)))
	}

	// Pad so a shorter line fully covers the previous one.
	fmt.Fprintf(b.w, "\r%-60s", line)

	b.drawn = true
}
