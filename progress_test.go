package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBoard(buf *bytes.Buffer) (*progressBoard, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b := newProgressBoard(buf, "Downloading")
	b.start = clock
	b.now = func() time.Time { return clock }

	return b, &clock
}

func TestProgressBoard_AggregatesAndThrottles(t *testing.T) {
	var buf bytes.Buffer

	b, clock := newTestBoard(&buf)
	*clock = clock.Add(time.Second)

	b.listener("/a").OnTransferProgress(1024, 1024, 2048, "a")
	assert.Contains(t, buf.String(), "Downloading 1.0 KiB / 2.0 KiB (50%)")
	assert.Contains(t, buf.String(), "1.0 KiB/s")

	// Within the interval: accounted but not drawn.
	buf.Reset()
	b.listener("/b").OnTransferProgress(1024, 1024, 2048, "b")
	assert.Empty(t, buf.String())

	*clock = clock.Add(time.Second)
	b.listener("/b").OnTransferProgress(1024, 2048, 2048, "b")
	assert.Contains(t, buf.String(), "3.0 KiB / 4.0 KiB (75%)")
}

func TestProgressBoard_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer

	b, clock := newTestBoard(&buf)
	*clock = clock.Add(time.Second)

	b.listener("/a").OnTransferProgress(10, 10, -1, "a")
	assert.Contains(t, buf.String(), "Downloading 10 B")
	assert.NotContains(t, buf.String(), "%")
}

func TestProgressBoard_Finish(t *testing.T) {
	var buf bytes.Buffer

	b, _ := newTestBoard(&buf)
	b.finish()
	assert.Empty(t, buf.String(), "nothing drawn, nothing to finish")

	b.listener("/a").OnTransferProgress(5, 5, 5, "a")
	b.finish()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "(100%)")
}
