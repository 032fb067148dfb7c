package remote

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // ownCloud checksums are SHA1
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Source is the local content of an upload. Open may be called more than once
// and must return a reader positioned at the start each time. Size is -1 when
// the length is not known up front; such content is streamed until EOF.
type Source interface {
	Open() (io.ReadCloser, error)
	Size() int64
	ModTime() time.Time
	Name() string
}

// FileSource uploads a file from the local filesystem.
type FileSource struct {
	path    string
	size    int64
	modTime time.Time
}

// NewFileSource stats path and returns a source for it.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, &os.PathError{Op: "upload", Path: path, Err: fmt.Errorf("is a directory")}
	}

	return &FileSource{path: path, size: info.Size(), modTime: info.ModTime()}, nil
}

func (s *FileSource) Open() (io.ReadCloser, error) { return os.Open(s.path) }
func (s *FileSource) Size() int64                  { return s.size }
func (s *FileSource) ModTime() time.Time           { return s.modTime }
func (s *FileSource) Name() string                 { return filepath.Base(s.path) }

// Path returns the local path.
func (s *FileSource) Path() string { return s.path }

// StreamSource uploads content from an opener, for data that does not live in
// a plain file. Length -1 marks content of unknown size. A non-negative Length
// is enforced: content that ends early or runs past it fails the upload with
// INCOMPLETE_TRANSFER.
type StreamSource struct {
	Opener   func() (io.ReadCloser, error)
	Length   int64
	Modified time.Time
	FileName string
}

func (s *StreamSource) Open() (io.ReadCloser, error) {
	if s.Opener == nil {
		return nil, fmt.Errorf("remote: stream source %q has no opener", s.FileName)
	}

	return s.Opener()
}

func (s *StreamSource) Size() int64        { return s.Length }
func (s *StreamSource) ModTime() time.Time { return s.Modified }
func (s *StreamSource) Name() string       { return s.FileName }

// sha1Hex hashes the full content of src.
func sha1Hex(src Source) (string, error) {
	r, err := src.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := sha1.New() //nolint:gosec // ownCloud checksums are SHA1
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("remote: hashing %s: %w", src.Name(), err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// sizedReader hands out exactly left bytes of r. The read that would complete
// the body first checks r is exhausted, so a source holding more than declared
// fails before the server sees a full-length body.
type sizedReader struct {
	r    *bufio.Reader
	left int64
}

func newSizedReader(r io.Reader, size int64) *sizedReader {
	return &sizedReader{r: bufio.NewReader(r), left: size}
}

func (s *sizedReader) Read(p []byte) (int, error) {
	if s.left <= 0 {
		if err := s.checkExhausted(); err != nil {
			return 0, err
		}

		return 0, io.EOF
	}

	if len(p) == 0 {
		return 0, nil
	}

	if int64(len(p)) > s.left {
		p = p[:s.left]
	}

	n, err := s.r.Read(p)
	s.left -= int64(n)

	if s.left == 0 {
		if cerr := s.checkExhausted(); cerr != nil {
			return 0, cerr
		}

		return n, io.EOF
	}

	if errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: source ended %d bytes short", ErrIncompleteTransfer, s.left)
	}

	return n, err
}

func (s *sizedReader) checkExhausted() error {
	_, err := s.r.Peek(1)

	switch {
	case err == nil:
		return fmt.Errorf("%w: source holds more than its declared length", ErrIncompleteTransfer)
	case errors.Is(err, io.EOF):
		return nil
	default:
		return err
	}
}

// checkEmpty fails when a source declared empty yields data.
func checkEmpty(r io.Reader) error {
	return newSizedReader(r, 0).checkExhausted()
}
