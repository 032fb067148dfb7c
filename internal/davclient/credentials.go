package davclient

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Credentials authorize outgoing requests. Defined here so callers can plug
// in any scheme; Basic and Bearer cover ownCloud.
type Credentials interface {
	Authorize(req *http.Request) error
	// Username is the login name; it may differ from the stable user id.
	Username() string
}

// BasicCredentials authenticate with HTTP Basic auth (user or app password).
type BasicCredentials struct {
	User     string
	Password string
}

func (b BasicCredentials) Authorize(req *http.Request) error {
	req.SetBasicAuth(b.User, b.Password)
	return nil
}

func (b BasicCredentials) Username() string { return b.User }

// BearerCredentials authenticate with an OAuth2 access token. Source handles
// refresh; a static source is fine for short-lived tokens.
type BearerCredentials struct {
	User   string
	Source oauth2.TokenSource
}

func (b BearerCredentials) Authorize(req *http.Request) error {
	if b.Source == nil {
		return errors.New("davclient: bearer credentials without token source")
	}

	tok, err := b.Source.Token()
	if err != nil {
		return fmt.Errorf("davclient: obtaining token: %w", err)
	}

	tok.SetAuthHeader(req)

	return nil
}

func (b BearerCredentials) Username() string { return b.User }

type anonymous struct{}

func (anonymous) Authorize(*http.Request) error { return nil }
func (anonymous) Username() string              { return "" }

// Anonymous sends requests without an Authorization header.
var Anonymous Credentials = anonymous{}
