package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPathForFileID_Redirect(t *testing.T) {
	var hits int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++

		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/f/42", r.URL.Path)

		w.Header().Set("Location", "/index.php/apps/files/?dir=/Docs/Reports&scrollto=q3%20final.pdf&fileid=42")
		w.WriteHeader(http.StatusSeeOther)
	}))
	defer srv.Close()

	res := (&GetPathForFileID{FileID: "42"}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.Equal(t, "/Docs/Reports/q3 final.pdf", res.Data)
	assert.Equal(t, http.StatusSeeOther, res.HTTPStatus)
	assert.Equal(t, 1, hits, "redirect is read, not followed")
}

func TestGetPathForFileID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	res := (&GetPathForFileID{FileID: "42"}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeFileNotFound, res.Code)
	assert.Empty(t, res.Data)
}

func TestGetPathForFileID_EmptyID(t *testing.T) {
	res := (&GetPathForFileID{}).Run(context.Background(), newOfflineTransport(t))
	assert.Equal(t, CodeFileNotFound, res.Code)
}

func TestPathFromLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
		wantErr  bool
	}{
		{"dir and scrollto", "https://h/apps/files/?dir=/A&scrollto=b.txt", "/A/b.txt", false},
		{"dir only", "https://h/apps/files/?dir=/A/B", "/A/B", false},
		{"root dir", "https://h/apps/files/?dir=/&scrollto=x", "/x", false},
		{"relative dir", "https://h/apps/files/?dir=A", "/A", false},
		{"path param", "https://h/files/?path=Docs/x.md", "/Docs/x.md", false},
		{"no query", "https://h/login", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pathFromLocation(tt.location)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnexpectedResponse)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetMetaFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "/remote.php/dav/meta/abc", r.URL.Path)

		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns">
  <d:response>
    <d:href>/remote.php/dav/meta/abc/</d:href>
    <d:propstat>
      <d:prop><oc:meta-path-for-user>Shared/plan.md</oc:meta-path-for-user></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`))
	}))
	defer srv.Close()

	res := (&GetMetaFile{FileID: "abc"}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.Equal(t, "/Shared/plan.md", res.Data)
}

func TestGetMetaFile_MissingProperty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`<d:multistatus xmlns:d="DAV:"><d:response><d:href>/x</d:href>
<d:propstat><d:prop/><d:status>HTTP/1.1 404 Not Found</d:status></d:propstat></d:response></d:multistatus>`))
	}))
	defer srv.Close()

	res := (&GetMetaFile{FileID: "abc"}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeWrongServerResponse, res.Code)
	assert.ErrorIs(t, res.Err, ErrUnexpectedResponse)
}
