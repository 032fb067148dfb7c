package remote

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferState_ConcurrentListeners(t *testing.T) {
	var s transferState

	var calls atomic.Int64

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(2)

		go func() {
			defer wg.Done()

			for range 100 {
				id := s.AddProgressListener(ProgressFunc(func(int64, int64, int64, string) { calls.Add(1) }))
				s.RemoveProgressListener(id)
			}
		}()

		go func() {
			defer wg.Done()

			for i := range 100 {
				s.notify(1, int64(i), 100, "f")
			}
		}()
	}

	wg.Wait()

	s.notify(1, 1, 1, "f")
	assert.Empty(t, s.listeners)
}

func TestTransferState_RemoveUnknownID(t *testing.T) {
	var s transferState
	s.RemoveProgressListener(99)

	id1 := s.AddProgressListener(ProgressFunc(func(int64, int64, int64, string) {}))
	id2 := s.AddProgressListener(ProgressFunc(func(int64, int64, int64, string) {}))
	assert.NotEqual(t, id1, id2)
}

func TestTransferState_CancelBeforeBind(t *testing.T) {
	var s transferState
	s.Cancel()

	ctx, release := s.bind(context.Background())
	defer release()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, s.IsCancelled())
}

func TestTransferState_CancelAfterBind(t *testing.T) {
	var s transferState

	ctx, release := s.bind(context.Background())
	defer release()

	require.NoError(t, ctx.Err())

	s.Cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestTransferState_CancelFromListener(t *testing.T) {
	var s transferState

	ctx, release := s.bind(context.Background())
	defer release()

	s.AddProgressListener(ProgressFunc(func(int64, int64, int64, string) { s.Cancel() }))
	s.notify(1, 1, 2, "f")

	assert.True(t, s.IsCancelled())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestProgressReader(t *testing.T) {
	var s transferState

	var seen []int64

	s.AddProgressListener(ProgressFunc(func(_, transferred, total int64, name string) {
		seen = append(seen, transferred)
		assert.Equal(t, int64(10), total)
		assert.Equal(t, "f.txt", name)
	}))

	pr := &progressReader{r: bytes.NewReader(payload(10)), state: &s, name: "f.txt", total: 10}

	buf := make([]byte, 4)

	var got []byte

	for {
		n, err := pr.Read(buf)
		got = append(got, buf[:n]...)

		if err == io.EOF {
			break
		}

		require.NoError(t, err)
	}

	assert.Equal(t, payload(10), got)
	assert.Equal(t, []int64{4, 8, 10}, seen)

	s.Cancel()

	_, err := pr.Read(buf)
	assert.ErrorIs(t, err, ErrCancelled)
}
