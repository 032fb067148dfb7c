package davclient

import (
	"net/http"
	"net/url"
)

// maxRedirections bounds how many Location hops Execute follows.
const maxRedirections = 5

// Hop is a single redirect followed while executing a request.
type Hop struct {
	From   string
	To     string
	Status int
}

// RedirectionPath records the redirects followed during one request.
// The zero value is an empty path.
type RedirectionPath struct {
	hops                  []Hop
	lastPermanentLocation string
}

// Count returns the number of redirects followed.
func (p *RedirectionPath) Count() int {
	if p == nil {
		return 0
	}

	return len(p.hops)
}

// Hops returns a copy of the recorded hops in the order they were followed.
func (p *RedirectionPath) Hops() []Hop {
	if p == nil {
		return nil
	}

	out := make([]Hop, len(p.hops))
	copy(out, p.hops)

	return out
}

// LastPermanentLocation returns the target of the last 301/308 hop, or ""
// when no permanent redirect was followed. Callers use it to detect that an
// account's base URL moved for good.
func (p *RedirectionPath) LastPermanentLocation() string {
	if p == nil {
		return ""
	}

	return p.lastPermanentLocation
}

// LastLocation returns the URL the request finally landed on, or "" when no
// redirect was followed.
func (p *RedirectionPath) LastLocation() string {
	if p.Count() == 0 {
		return ""
	}

	return p.hops[len(p.hops)-1].To
}

// LastStatus returns the status of the last hop, or 0 when empty.
func (p *RedirectionPath) LastStatus() int {
	if p.Count() == 0 {
		return 0
	}

	return p.hops[len(p.hops)-1].Status
}

func (p *RedirectionPath) add(from, to string, status int) {
	p.hops = append(p.hops, Hop{From: from, To: to, Status: status})

	if isPermanentRedirect(status) {
		p.lastPermanentLocation = to
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func isPermanentRedirect(code int) bool {
	return code == http.StatusMovedPermanently || code == http.StatusPermanentRedirect
}

// resolveLocation resolves a Location header against the URL that produced it.
func resolveLocation(from, location string) (string, error) {
	base, err := url.Parse(from)
	if err != nil {
		return "", err
	}

	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(ref).String(), nil
}
