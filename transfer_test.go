package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ocdav/internal/config"
	"github.com/tonimelisma/ocdav/internal/ledger"
	"github.com/tonimelisma/ocdav/internal/remote"
	"github.com/tonimelisma/ocdav/internal/session"
)

func TestGet_ParallelRecordsLedger(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.write(t, "Docs/a.txt", "alpha")
	e.srv.write(t, "Docs/sub/b.txt", "bravo!")

	dir := t.TempDir()

	out, _, err := e.run(t, "--json", "get", "--dir", dir, "/Docs/a.txt", "Docs/sub/b.txt")
	require.NoError(t, err)

	var results []downloadJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "Docs", "a.txt"), results[0].LocalPath)
	assert.Equal(t, int64(6), results[1].Size)

	data, err := os.ReadFile(filepath.Join(dir, "Docs", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo!", string(data))

	entry, err := e.ledger(t).Get(context.Background(), "/Docs/a.txt")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, results[0].ETag, entry.ETag)
	assert.Equal(t, int64(5), entry.Size)
}

func TestGet_FailureReportsPath(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.write(t, "a.txt", "a")

	_, _, err := e.run(t, "get", "--dir", t.TempDir(), "/a.txt", "/missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloading /missing.txt")
	assert.Contains(t, err.Error(), "FILE_NOT_FOUND")
}

func writeLocal(t *testing.T, name, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	return p
}

func TestPut_UsesLedgerETagAsIfMatch(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.write(t, "Docs/.keep", "")

	local := writeLocal(t, "report.txt", "version one")

	out, _, err := e.run(t, "--json", "put", local, "/Docs/")
	require.NoError(t, err)

	var first uploadJSON
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, "/Docs/report.txt", first.RemotePath)
	assert.False(t, first.Conditional)
	assert.False(t, first.Chunked)
	assert.Equal(t, "version one", e.srv.read(t, "Docs/report.txt"))

	puts := e.srv.requestsFor("PUT")
	require.Len(t, puts, 1)
	assert.Empty(t, puts[0].Header.Get("If-Match"))
	assert.Contains(t, puts[0].Header.Get("OC-Checksum"), "SHA1:")
	assert.Equal(t, "text/plain; charset=utf-8", puts[0].Header.Get("Content-Type"))

	entry, err := e.ledger(t).Get(context.Background(), "/Docs/report.txt")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, first.ETag, entry.ETag)

	require.NoError(t, os.WriteFile(local, []byte("version two"), 0o644))

	_, _, err = e.run(t, "put", local, "/Docs/report.txt")
	require.NoError(t, err)

	puts = e.srv.requestsFor("PUT")
	require.Len(t, puts, 2)
	assert.Equal(t, `"`+first.ETag+`"`, puts[1].Header.Get("If-Match"))
	assert.Equal(t, "version two", e.srv.read(t, "Docs/report.txt"))

	_, _, err = e.run(t, "put", "--force", local, "/Docs/report.txt")
	require.NoError(t, err)

	puts = e.srv.requestsFor("PUT")
	require.Len(t, puts, 3)
	assert.Empty(t, puts[2].Header.Get("If-Match"))
}

func TestPut_ExplicitIfMatch(t *testing.T) {
	e := newCLIEnv(t)
	local := writeLocal(t, "a.bin", "abc")

	_, _, err := e.run(t, "put", "--if-match", `"etag-7"`, "--checksum=false", local, "/a.bin")
	require.NoError(t, err)

	puts := e.srv.requestsFor("PUT")
	require.Len(t, puts, 1)
	assert.Equal(t, `"etag-7"`, puts[0].Header.Get("If-Match"))
	assert.Empty(t, puts[0].Header.Get("OC-Checksum"))
}

func TestPut_IfMatchAndForceConflict(t *testing.T) {
	e := newCLIEnv(t)
	local := writeLocal(t, "a.txt", "a")

	_, _, err := e.run(t, "put", "--if-match", "x", "--force", local, "/a.txt")
	require.Error(t, err)
	assert.Empty(t, e.srv.requestsFor("PUT"))
}

func TestPut_MissingLocalFile(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := e.run(t, "put", filepath.Join(t.TempDir(), "absent"), "/a.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading local file")
}

func TestPut_MissingParentFolder(t *testing.T) {
	e := newCLIEnv(t)
	local := writeLocal(t, "a.txt", "a")

	_, _, err := e.run(t, "put", local, "/no/such/dir/a.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILE_NOT_FOUND")
	assert.Empty(t, e.srv.requestsFor("PUT"))
}

func TestUseChunked(t *testing.T) {
	cc := &CLIContext{Cfg: &config.Resolved{ChunkSize: 10 << 20, ChunkingThreshold: 100 << 20}}
	user := &session.Session{Resolved: &config.Resolved{}}
	space := &session.Session{Resolved: &config.Resolved{SpaceURL: "https://cloud.example.com/remote.php/dav/spaces/sp"}}

	tests := []struct {
		name    string
		s       *session.Session
		size    int64
		forced  bool
		want    bool
		wantErr bool
	}{
		{"small", user, 1 << 20, false, false, false},
		{"at threshold", user, 100 << 20, false, false, false},
		{"above threshold", user, 100<<20 + 1, false, true, false},
		{"forced", user, 1, true, true, false},
		{"space never chunks", space, 1 << 30, false, false, false},
		{"space forced", space, 1, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := useChunked(cc, tt.s, tt.size, tt.forced)
			if tt.wantErr {
				require.ErrorIs(t, err, errChunkedSpace)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	disabled := &CLIContext{Cfg: &config.Resolved{ChunkSize: 0, ChunkingThreshold: 1}}
	got, err := useChunked(disabled, user, 1<<30, false)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestVerify(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.write(t, "a.txt", "first")
	e.srv.write(t, "b.txt", "bee")

	_, _, err := e.run(t, "get", "--dir", t.TempDir(), "/a.txt", "/b.txt")
	require.NoError(t, err)

	out, _, err := e.run(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")
	assert.NotContains(t, out, " changed")

	e.srv.write(t, "a.txt", "second version")
	require.NoError(t, os.Remove(filepath.Join(e.srv.Dir, "b.txt")))

	out, _, err = e.run(t, "--json", "verify", "/a.txt", "/b.txt", "/c.txt")
	require.ErrorIs(t, err, errVerifyMismatch)
	assert.Equal(t, exitMismatch, exitCode(err))

	var rows []verifyRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, verifyChanged, rows[0].Status)
	assert.NotEqual(t, rows[0].Recorded, rows[0].Current)
	assert.Equal(t, verifyMissing, rows[1].Status)
	assert.Equal(t, verifyUntracked, rows[2].Status)
}

func TestVerify_EmptyLedger(t *testing.T) {
	e := newCLIEnv(t)

	out, _, err := e.run(t, "verify")
	require.NoError(t, err)
	assert.Equal(t, "Nothing recorded.\n", out)
}

func TestRecordUpload_NoETagForgets(t *testing.T) {
	e := newCLIEnv(t)
	store := e.ledger(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, ledger.Entry{RemotePath: "/a", ETag: "old"}))
	require.NoError(t, recordUpload(ctx, store, "/a", time.Time{}, &remote.UploadInfo{Size: 1}))

	got, err := store.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, recordUpload(ctx, nil, "/a", time.Time{}, &remote.UploadInfo{ETag: "x"}))
}
