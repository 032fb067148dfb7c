package davclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "/Docs/a.txt", "/Docs/a.txt"},
		{"spaces", "/My Docs/a b.txt", "/My%20Docs/a%20b.txt"},
		{"reserved", "/a#b/c?d", "/a%23b/c%3Fd"},
		{"percent", "/100%", "/100%25"},
		{"nfd to nfc", "/cafe\u0301", "/caf%C3%A9"},
		{"root", "/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodePath(tt.in))
		})
	}
}

func TestJoinURL(t *testing.T) {
	root := "https://cloud.example.com/remote.php/dav/files/u1"

	assert.Equal(t, root+"/Docs/a%20b.txt", JoinURL(root, "/Docs/a b.txt"))
	assert.Equal(t, root+"/x", JoinURL(root+"/", "/x"))
}

func TestRelativePath(t *testing.T) {
	root := "https://cloud.example.com/remote.php/dav/files/u1"

	tests := []struct {
		name string
		href string
		want string
	}{
		{"file", "/remote.php/dav/files/u1/Docs/a.txt", "/Docs/a.txt"},
		{"folder trailing slash", "/remote.php/dav/files/u1/Docs/", "/Docs"},
		{"root", "/remote.php/dav/files/u1/", "/"},
		{"root without slash", "/remote.php/dav/files/u1", "/"},
		{"encoded", "/remote.php/dav/files/u1/My%20Docs/caf%C3%A9.txt", "/My Docs/café.txt"},
		{"absolute href", "https://cloud.example.com/remote.php/dav/files/u1/a", "/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RelativePath(root, tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelativePath_EncodedRoot(t *testing.T) {
	got, err := RelativePath("https://h/remote.php/dav/spaces/a%24b", "/remote.php/dav/spaces/a$b/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "/x.txt", got)
}

func TestRelativePath_OutsideRoot(t *testing.T) {
	root := "https://cloud.example.com/remote.php/dav/files/u1"

	_, err := RelativePath(root, "/remote.php/dav/files/u2/a.txt")
	require.Error(t, err)

	_, err = RelativePath(root, "/remote.php/dav/files/u10/a.txt")
	require.Error(t, err, "sibling user with shared prefix")
}
