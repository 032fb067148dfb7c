package davclient

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// WebDAV endpoints below the server root.
const (
	filesPath   = "/remote.php/dav/files/"
	uploadsPath = "/remote.php/dav/uploads/"
	metaPath    = "/remote.php/dav/meta/"
	fileIDPath  = "/f/"
)

// EncodePath percent-encodes each segment of a slash-separated remote path.
// Segments are normalized to NFC first: macOS produces NFD names locally and
// ownCloud stores whatever bytes it receives.
func EncodePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(norm.NFC.String(seg))
	}

	return strings.Join(segments, "/")
}

// FilesRoot returns the WebDAV root of a user's files.
func (c *Client) FilesRoot() string {
	return c.filesRootFor(c.userID)
}

// FilesRootFor returns the files root for an arbitrary login name. Used to
// probe credentials before the stable user id is known.
func (c *Client) FilesRootFor(user string) string {
	return c.filesRootFor(user)
}

func (c *Client) filesRootFor(user string) string {
	return c.baseURL + filesPath + url.PathEscape(user)
}

// UploadsRoot returns the staging root used by chunked uploads.
func (c *Client) UploadsRoot() string {
	return c.baseURL + uploadsPath + url.PathEscape(c.userID)
}

// MetaURL returns the meta endpoint for a file id.
func (c *Client) MetaURL(fileID string) string {
	return c.baseURL + metaPath + url.PathEscape(fileID)
}

// FileIDURL returns the private-link endpoint for a file id.
func (c *Client) FileIDURL(fileID string) string {
	return c.baseURL + fileIDPath + url.PathEscape(fileID)
}

// JoinURL appends an encoded remote path to a WebDAV root. remotePath must
// start with "/".
func JoinURL(root, remotePath string) string {
	return strings.TrimSuffix(root, "/") + EncodePath(remotePath)
}

// RelativePath converts an href from a multistatus response into a path
// relative to root. Both sides are percent-decoded before the prefix is
// stripped, so encoded and literal spellings of the same name match.
// Folders lose their trailing slash; the root itself becomes "/".
func RelativePath(root, href string) (string, error) {
	rootURL, err := url.Parse(root)
	if err != nil {
		return "", fmt.Errorf("davclient: parsing root %q: %w", root, err)
	}

	hrefURL, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("davclient: parsing href %q: %w", href, err)
	}

	prefix := strings.TrimSuffix(rootURL.Path, "/")
	decoded := hrefURL.Path

	if !strings.HasPrefix(decoded, prefix) {
		return "", fmt.Errorf("davclient: href %q is outside root %q", href, root)
	}

	rel := strings.TrimSuffix(decoded[len(prefix):], "/")
	if rel == "" {
		return "/", nil
	}

	if !strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("davclient: href %q is outside root %q", href, root)
	}

	return rel, nil
}
