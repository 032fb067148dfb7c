package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const davFiles = "/remote.php/dav/files/u1"

func TestCreateFolder_Simple(t *testing.T) {
	srv := newDAVServer(t)

	res := (&CreateFolder{RemotePath: "/New"}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.Equal(t, http.StatusCreated, res.HTTPStatus)
	assert.True(t, srv.exists("New"))
}

func TestCreateFolder_MissingParentWithoutFullPath(t *testing.T) {
	srv := newDAVServer(t)

	res := (&CreateFolder{RemotePath: "/A/B"}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeConflict, res.Code)
	assert.Equal(t, 1, srv.Log.count("MKCOL"))
	assert.False(t, srv.exists("A"))
}

func TestCreateFolder_FullPathOneMissingParent(t *testing.T) {
	srv := newDAVServer(t)

	res := (&CreateFolder{RemotePath: "/A/B", CreateFullPath: true}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.True(t, srv.exists("A/B"))

	assert.Equal(t, 2, srv.Log.countPath("MKCOL", davFiles+"/A/B"))
	assert.Equal(t, 1, srv.Log.countPath("MKCOL", davFiles+"/A"))
	assert.Equal(t, 3, srv.Log.count("MKCOL"))
}

func TestCreateFolder_FullPathDeep(t *testing.T) {
	srv := newDAVServer(t)

	res := (&CreateFolder{RemotePath: "/X/Y/Z", CreateFullPath: true}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.True(t, srv.exists("X/Y/Z"))

	for _, p := range []string{"/X/Y/Z", "/X/Y"} {
		assert.LessOrEqual(t, srv.Log.countPath("MKCOL", davFiles+p), 2, p)
	}

	assert.Equal(t, 5, srv.Log.count("MKCOL"))
}

func TestCreateFolder_AlreadyExists(t *testing.T) {
	srv := newDAVServer(t)
	srv.mkdir(t, "Here")

	res := (&CreateFolder{RemotePath: "/Here", CreateFullPath: true}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeSpecificMethodNotAllowed, res.Code)
	assert.Equal(t, 1, srv.Log.count("MKCOL"))
}

func TestCreateFolder_RootRejected(t *testing.T) {
	res := (&CreateFolder{RemotePath: "/"}).Run(context.Background(), newOfflineTransport(t))
	assert.Equal(t, CodeInvalidRemotePath, res.Code)
}

func TestCreateFolder_ChunksFolderUsesUploadsRoot(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	res := (&CreateFolder{RemotePath: "/tx-1", IsChunksFolder: true}).Run(context.Background(), newTestTransport(t, srv.URL))
	require.True(t, res.IsSuccess(), res.Error())
	assert.Equal(t, "/remote.php/dav/uploads/u1/tx-1", gotPath)
}

func TestCreateFolder_ServiceUnavailableSentOnce(t *testing.T) {
	srv, log := newUnavailableServer(t)

	res := (&CreateFolder{RemotePath: "/New"}).Run(context.Background(), newTestTransport(t, srv.URL))
	assert.Equal(t, CodeServiceUnavailable, res.Code)
	assert.Equal(t, 1, log.count("MKCOL"))
}
