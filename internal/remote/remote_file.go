package remote

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// Folder mime types. ownCloud reports folders without a content type; ocdav
// uses MimeTypeDir for them.
const (
	MimeTypeDir       = "DIR"
	MimeTypeDirUnix   = "httpd/unix-directory"
	defaultFolderPath = "/"
)

// Share types reported in oc:share-types.
const (
	shareTypeUser   = 0
	shareTypeGroup  = 1
	shareTypeLink   = 3
	shareTypeRemote = 6
)

// RemoteFile is the metadata of one remote resource, built from a PROPFIND
// response entry. It is never mutated after construction.
type RemoteFile struct {
	RemotePath       string // always starts with "/"
	MimeType         string
	Length           int64 // getcontentlength; 0 for folders
	CreationTime     time.Time
	ModifiedTime     time.Time
	ETag             string // quotes stripped
	Permissions      string
	RemoteID         string
	Size             int64 // oc:size; for folders the recursive size
	PrivateLink      string
	Owner            string
	SharedByLink     bool
	SharedWithSharee bool
}

// IsFolder reports whether the resource is a collection.
func (f *RemoteFile) IsFolder() bool {
	return f.MimeType == MimeTypeDir || f.MimeType == MimeTypeDirUnix
}

// Name returns the last path segment, or "/" for the root.
func (f *RemoteFile) Name() string {
	if f.RemotePath == defaultFolderPath {
		return defaultFolderPath
	}

	return f.RemotePath[strings.LastIndex(f.RemotePath, "/")+1:]
}

// newRemoteFile builds a RemoteFile from a multistatus entry. root is the
// WebDAV root the href is relative to.
func newRemoteFile(root string, resp *davclient.PropResponse) (*RemoteFile, error) {
	remotePath, err := davclient.RelativePath(root, resp.Href)
	if err != nil {
		return nil, err
	}

	if remotePath == "" || !strings.HasPrefix(remotePath, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRemotePath, remotePath)
	}

	props, found := resp.AcceptedProps()
	if !found {
		return nil, fmt.Errorf("%w: no readable properties for %q", ErrUnexpectedResponse, resp.Href)
	}

	f := &RemoteFile{
		RemotePath:   remotePath,
		MimeType:     props.ContentType,
		Length:       parseInt(props.ContentLength),
		CreationTime: parseISOTime(props.CreationDate),
		ModifiedTime: parseHTTPTime(props.LastModified),
		ETag:         NormalizeETag(props.ETag),
		Permissions:  props.Permissions,
		RemoteID:     props.ID,
		Size:         parseInt(props.Size),
		PrivateLink:  props.PrivateLink,
		Owner:        props.OwnerID,
	}

	if props.ResourceType.Collection != nil {
		f.MimeType = MimeTypeDir
	}

	for _, st := range props.ShareTypes.Types {
		switch st {
		case shareTypeLink:
			f.SharedByLink = true
		case shareTypeUser, shareTypeGroup, shareTypeRemote:
			f.SharedWithSharee = true
		}
	}

	return f, nil
}

// NormalizeETag strips surrounding quotes and a weak-validator prefix.
func NormalizeETag(etag string) string {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")

	return strings.Trim(etag, `"`)
}

// quoteETag formats an ETag for If-Match, leaving already-quoted values alone.
func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, `W/"`) {
		return etag
	}

	return `"` + etag + `"`
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// parseHTTPTime parses an RFC 1123 date as used by getlastmodified and
// Last-Modified. Returns the zero time when unparseable.
func parseHTTPTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := http.ParseTime(s)
	if err != nil {
		return time.Time{}
	}

	return t
}

// parseISOTime parses a creationdate (RFC 3339).
func parseISOTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
