package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFolder_SelfFirstThenChildren(t *testing.T) {
	srv := newDAVServer(t)
	srv.write(t, "Docs/a.txt", []byte("hello"))
	srv.write(t, "Docs/b c.txt", []byte("x"))
	srv.mkdir(t, "Docs/sub")

	res := (&ReadFolder{RemotePath: "/Docs"}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	require.Len(t, res.Data, 4)

	assert.Equal(t, "/Docs", res.Data[0].RemotePath)
	assert.True(t, res.Data[0].IsFolder())

	byPath := map[string]*RemoteFile{}
	for _, f := range res.Data[1:] {
		byPath[f.RemotePath] = f
	}

	require.Contains(t, byPath, "/Docs/a.txt")
	assert.Equal(t, int64(5), byPath["/Docs/a.txt"].Length)
	assert.NotEmpty(t, byPath["/Docs/a.txt"].ETag)
	assert.NotContains(t, byPath["/Docs/a.txt"].ETag, `"`)
	assert.Contains(t, byPath, "/Docs/b c.txt")
	require.Contains(t, byPath, "/Docs/sub")
	assert.True(t, byPath["/Docs/sub"].IsFolder())

	assert.Equal(t, "1", srv.Log.all()[0].Header.Get("Depth"))
}

func TestReadFile_Single(t *testing.T) {
	srv := newDAVServer(t)
	srv.write(t, "a.txt", []byte("0123456789"))

	res := (&ReadFile{RemotePath: "/a.txt"}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())

	assert.Equal(t, "/a.txt", res.Data.RemotePath)
	assert.Equal(t, int64(10), res.Data.Length)
	assert.False(t, res.Data.ModifiedTime.IsZero())
	assert.Equal(t, "0", srv.Log.all()[0].Header.Get("Depth"))
}

func TestReadFile_NotFound(t *testing.T) {
	srv := newDAVServer(t)

	res := (&ReadFile{RemotePath: "/missing.txt"}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeFileNotFound, res.Code)
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus)
	assert.Nil(t, res.Data)
}

func TestReadFile_InvalidPath(t *testing.T) {
	res := (&ReadFile{RemotePath: "relative"}).Run(context.Background(), newOfflineTransport(t))
	assert.Equal(t, CodeInvalidRemotePath, res.Code)
	assert.ErrorIs(t, res.Err, ErrInvalidRemotePath)
}

func TestReadFolder_SpaceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "/remote.php/dav/spaces/sp-1/Project", r.URL.Path)

		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns">
  <d:response>
    <d:href>/remote.php/dav/spaces/sp-1/Project/</d:href>
    <d:propstat><d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status></d:propstat>
  </d:response>
  <d:response>
    <d:href>/remote.php/dav/spaces/sp-1/Project/plan%231.md</d:href>
    <d:propstat><d:prop><d:resourcetype/><d:getetag>"p1"</d:getetag></d:prop>
      <d:status>HTTP/1.1 425 Too Early</d:status></d:propstat>
  </d:response>
</d:multistatus>`))
	}))
	defer srv.Close()

	op := &ReadFolder{RemotePath: "/Project", SpaceURL: srv.URL + "/remote.php/dav/spaces/sp-1"}

	res := op.Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	require.Len(t, res.Data, 2)
	assert.Equal(t, "/Project", res.Data[0].RemotePath)
	assert.Equal(t, "/Project/plan#1.md", res.Data[1].RemotePath)
	assert.Equal(t, "p1", res.Data[1].ETag)
}

func TestReadFolder_SelfMovedToFront(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`<d:multistatus xmlns:d="DAV:">
<d:response><d:href>/remote.php/dav/files/u1/D/x</d:href>
<d:propstat><d:prop><d:resourcetype/></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>
<d:response><d:href>/remote.php/dav/files/u1/D/</d:href>
<d:propstat><d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>
</d:multistatus>`))
	}))
	defer srv.Close()

	res := (&ReadFolder{RemotePath: "/D"}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.Equal(t, "/D", res.Data[0].RemotePath)
	assert.Equal(t, "/D/x", res.Data[1].RemotePath)
}

func TestReadFolder_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte("<html>not dav</html>"))
	}))
	defer srv.Close()

	res := (&ReadFolder{RemotePath: "/D"}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeWrongServerResponse, res.Code)
	assert.Equal(t, http.StatusMultiStatus, res.HTTPStatus)
}

func TestReadFile_FollowsRedirect(t *testing.T) {
	dav := newDAVServer(t)
	dav.write(t, "a.txt", []byte("abc"))

	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dav.URL+r.URL.Path, http.StatusPermanentRedirect)
	}))
	defer front.Close()

	res := (&ReadFile{RemotePath: "/a.txt"}).Run(context.Background(), newTestTransport(t, front.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.Equal(t, 1, res.Redirections.Count())
	assert.Equal(t, dav.URL+"/remote.php/dav/files/u1/a.txt", res.Redirections.LastPermanentLocation())
}
