package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io/fs"
	"net"
	"net/url"
	"syscall"

	"golang.org/x/oauth2"
)

// Sentinel errors carried in Result.Err. Use errors.Is to check.
var (
	ErrCancelled          = errors.New("remote: operation cancelled")
	ErrIncompleteTransfer = errors.New("remote: transferred size does not match declared length")
	ErrInvalidRemotePath  = errors.New("remote: remote path must start with /")
	ErrTargetExists       = errors.New("remote: target already exists")
	ErrIntoDescendant     = errors.New("remote: target is inside source")
	ErrUnexpectedResponse = errors.New("remote: unexpected server response")
)

// oauth2AccessDenied is the RFC 6749 error code for a refused grant.
const oauth2AccessDenied = "access_denied"

// codeForError infers a result code from a failure that produced no HTTP
// response.
func codeForError(err error) ResultCode {
	if err == nil {
		return CodeOK
	}

	if code, ok := codeForLocalError(err); ok {
		return code
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == oauth2AccessDenied {
			return CodeOAuth2ErrorAccessDenied
		}

		return CodeOAuth2Error
	}

	if code, ok := codeForTLSError(err); ok {
		return code
	}

	return codeForNetError(err)
}

func codeForLocalError(err error) (ResultCode, bool) {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return CodeCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, true
	case errors.Is(err, ErrIncompleteTransfer):
		return CodeIncompleteTransfer, true
	case errors.Is(err, ErrInvalidRemotePath):
		return CodeInvalidRemotePath, true
	case errors.Is(err, ErrUnexpectedResponse):
		return CodeWrongServerResponse, true
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		if errors.Is(err, fs.ErrNotExist) {
			return CodeLocalFileNotFound, true
		}

		return CodeLocalStorageError, true
	}

	return "", false
}

func codeForTLSError(err error) (ResultCode, bool) {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
	)

	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) || errors.As(err, &invalidCert) {
		return CodeSSLRecoverablePeerUnverified, true
	}

	var (
		verifyErr *tls.CertificateVerificationError
		headerErr tls.RecordHeaderError
		alertErr  tls.AlertError
	)

	if errors.As(err, &verifyErr) || errors.As(err, &headerErr) || errors.As(err, &alertErr) {
		return CodeSSLError, true
	}

	return "", false
}

func codeForNetError(err error) ResultCode {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return CodeIncorrectAddress
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeHostNotAvailable
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ECONNRESET) {
		return CodeNoNetworkConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return CodeNoNetworkConnection
	}

	return CodeUnknownError
}
