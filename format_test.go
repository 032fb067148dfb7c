package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-1, "-"},
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{1 << 40, "1.0 TiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.in), tt.in)
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))

	old := time.Date(2001, 2, 3, 4, 5, 0, 0, time.Local)
	assert.Equal(t, "Feb  3  2001", formatTime(old))

	now := time.Now()
	assert.Equal(t, now.Format("Jan _2 15:04"), formatTime(now))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"NAME", "SIZE"}, [][]string{
		{"a-long-name.txt", "1 B"},
		{"b", ""},
	})

	assert.Equal(t,
		"NAME             SIZE\n"+
			"a-long-name.txt  1 B\n"+
			"b\n",
		buf.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestStatusf_Quiet(t *testing.T) {
	var buf bytes.Buffer

	cc := &CLIContext{Stderr: &buf}
	cc.Statusf("hello %s\n", "there")
	assert.Equal(t, "hello there\n", buf.String())

	buf.Reset()
	cc.Flags.Quiet = true
	cc.Statusf("hidden\n")
	assert.Empty(t, buf.String())
}
