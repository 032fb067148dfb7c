// Package remote implements the WebDAV operations ocdav performs against an
// ownCloud-compatible server: listing, existence probes, folder creation,
// rename/move/copy/remove, and cancellable, progress-reporting transfers.
//
// Every operation is built with immutable parameters and executed with Run,
// which never returns a Go error or panics. The outcome is always a Result
// carrying a ResultCode, optional data, the underlying error, and the HTTP
// status when one was received.
package remote

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// ResultCode classifies the outcome of an operation.
type ResultCode string

// Result codes. The OK family marks success; every other code is a failure.
const (
	CodeOK                              ResultCode = "OK"
	CodeOKSSL                           ResultCode = "OK_SSL"
	CodeOKNoSSL                         ResultCode = "OK_NO_SSL"
	CodeOKRedirectToNonSecureConnection ResultCode = "OK_REDIRECT_TO_NON_SECURE_CONNECTION"

	CodeConflict                  ResultCode = "CONFLICT"
	CodeInvalidOverwrite          ResultCode = "INVALID_OVERWRITE"
	CodeInvalidMoveIntoDescendant ResultCode = "INVALID_MOVE_INTO_DESCENDANT"
	CodeInvalidCopyIntoDescendant ResultCode = "INVALID_COPY_INTO_DESCENDANT"
	CodeAccountNotNew             ResultCode = "ACCOUNT_NOT_NEW"
	CodeAccountNotTheSame         ResultCode = "ACCOUNT_NOT_THE_SAME"

	CodeNoNetworkConnection          ResultCode = "NO_NETWORK_CONNECTION"
	CodeSSLRecoverablePeerUnverified ResultCode = "SSL_RECOVERABLE_PEER_UNVERIFIED"
	CodeSSLError                     ResultCode = "SSL_ERROR"
	CodeOAuth2Error                  ResultCode = "OAUTH2_ERROR"
	CodeOAuth2ErrorAccessDenied      ResultCode = "OAUTH2_ERROR_ACCESS_DENIED"
	CodeHostNotAvailable             ResultCode = "HOST_NOT_AVAILABLE"
	CodeIncorrectAddress             ResultCode = "INCORRECT_ADDRESS"
	CodeTimeout                      ResultCode = "TIMEOUT"
	CodeCancelled                    ResultCode = "CANCELLED"
	CodeUnknownError                 ResultCode = "UNKNOWN_ERROR"

	CodeBadRequest                   ResultCode = "BAD_REQUEST"
	CodeUnauthorized                 ResultCode = "UNAUTHORIZED"
	CodeForbidden                    ResultCode = "FORBIDDEN"
	CodeFileNotFound                 ResultCode = "FILE_NOT_FOUND"
	CodeSpecificMethodNotAllowed     ResultCode = "SPECIFIC_METHOD_NOT_ALLOWED"
	CodePreconditionFailed           ResultCode = "PRECONDITION_FAILED"
	CodeSpecificUnsupportedMediaType ResultCode = "SPECIFIC_UNSUPPORTED_MEDIA_TYPE"
	CodeResourceLocked               ResultCode = "RESOURCE_LOCKED"
	CodeTooEarly                     ResultCode = "TOO_EARLY"
	CodeTooManyRequests              ResultCode = "TOO_MANY_REQUESTS"
	CodeInternalServerError          ResultCode = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable           ResultCode = "SERVICE_UNAVAILABLE"
	CodeQuotaExceeded                ResultCode = "QUOTA_EXCEEDED"
	CodeUnhandledHTTPCode            ResultCode = "UNHANDLED_HTTP_CODE"

	CodeWrongServerResponse    ResultCode = "WRONG_SERVER_RESPONSE"
	CodeIncompleteTransfer     ResultCode = "INCOMPLETE_TRANSFER"
	CodeLocalFileNotFound      ResultCode = "LOCAL_FILE_NOT_FOUND"
	CodeLocalStorageError      ResultCode = "LOCAL_STORAGE_ERROR"
	CodeInvalidLocalPath       ResultCode = "INVALID_LOCAL_PATH"
	CodeInvalidRemotePath      ResultCode = "INVALID_REMOTE_PATH"
	CodeInvalidCharacterInName ResultCode = "INVALID_CHARACTER_IN_NAME"
)

// IsSuccess reports whether c belongs to the OK family.
func (c ResultCode) IsSuccess() bool {
	switch c {
	case CodeOK, CodeOKSSL, CodeOKNoSSL, CodeOKRedirectToNonSecureConnection:
		return true
	default:
		return false
	}
}

func (c ResultCode) String() string { return string(c) }

// Result is the envelope every operation returns.
type Result[T any] struct {
	Code ResultCode
	Data T
	// Err is the underlying failure: a *davclient.StatusError for protocol
	// failures, a transport error, or one of this package's sentinels.
	Err error
	// HTTPStatus is the final status received, or 0 when no response arrived.
	HTTPStatus int
	// RequestID is the server request id of the final response, if any.
	RequestID string
	// Redirections lists the redirects followed; nil when none were requested.
	Redirections *davclient.RedirectionPath
}

// IsSuccess reports whether the operation succeeded.
func (r *Result[T]) IsSuccess() bool {
	return r.Code.IsSuccess()
}

// Error describes a failed result; it returns "" for a successful one.
func (r *Result[T]) Error() string {
	if r.IsSuccess() {
		return ""
	}

	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Code, r.Err)
	}

	if r.HTTPStatus != 0 {
		return fmt.Sprintf("%s (HTTP %d)", r.Code, r.HTTPStatus)
	}

	return string(r.Code)
}

// ok builds a successful result carrying data.
func ok[T any](data T) *Result[T] {
	return &Result[T]{Code: CodeOK, Data: data}
}

// withCode builds a result that carries only a code and optional error.
func withCode[T any](code ResultCode, err error) *Result[T] {
	return &Result[T]{Code: code, Err: err}
}

// fromError builds a failed result from a transport or local error.
func fromError[T any](err error) *Result[T] {
	return &Result[T]{Code: codeForError(err), Err: err}
}

// fromResponse builds a result from a completed exchange. Statuses listed in
// accepted yield CodeOK; anything else reads and closes the body into a
// StatusError. A 2xx outside accepted is unhandled. The caller still owns the
// body of an accepted response.
func fromResponse[T any](resp *davclient.Response, accepted ...int) *Result[T] {
	r := &Result[T]{
		Code:         CodeOK,
		HTTPStatus:   resp.StatusCode,
		RequestID:    resp.RequestID(),
		Redirections: resp.Redirections,
	}

	if slices.Contains(accepted, resp.StatusCode) {
		return r
	}

	r.Code = CodeForStatus(resp.StatusCode)
	if r.Code == CodeOK {
		r.Code = CodeUnhandledHTTPCode
	}

	r.Err = davclient.NewStatusError(resp.Response)

	return r
}

// convert copies the failure details of src into a result of another type.
func convert[T, U any](src *Result[U]) *Result[T] {
	return &Result[T]{
		Code:         src.Code,
		Err:          src.Err,
		HTTPStatus:   src.HTTPStatus,
		RequestID:    src.RequestID,
		Redirections: src.Redirections,
	}
}

// CodeForStatus maps an HTTP status to a result code.
func CodeForStatus(status int) ResultCode {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return CodeOK
	case status == http.StatusBadRequest:
		return CodeBadRequest
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeFileNotFound
	case status == http.StatusMethodNotAllowed:
		return CodeSpecificMethodNotAllowed
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusPreconditionFailed:
		return CodePreconditionFailed
	case status == http.StatusUnsupportedMediaType:
		return CodeSpecificUnsupportedMediaType
	case status == http.StatusLocked:
		return CodeResourceLocked
	case status == http.StatusTooEarly:
		return CodeTooEarly
	case status == http.StatusTooManyRequests:
		return CodeTooManyRequests
	case status == http.StatusInternalServerError:
		return CodeInternalServerError
	case status == http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	case status == http.StatusInsufficientStorage:
		return CodeQuotaExceeded
	default:
		return CodeUnhandledHTTPCode
	}
}

// remapPrecondition turns a 412 into an overwrite conflict. Move, Copy and
// Upload use it: for them a failed precondition means the target exists or
// changed.
func remapPrecondition[T any](r *Result[T]) *Result[T] {
	if r.Code == CodePreconditionFailed {
		r.Code = CodeInvalidOverwrite
	}

	return r
}
