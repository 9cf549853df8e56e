package domain

import (
	"errors"
	"net"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	errScheme   = errors.New("scheme must be http or https")
	errNoHost   = errors.New("host is required")
	defaultPort = map[string]string{"http": "80", "https": "443"}
)

// NormalizeURL validates raw as an absolute http(s) URL and returns its
// canonical form: lowercase scheme and host, no default port, no fragment,
// and no trailing slash on an empty path.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := validation.Validate(raw, validation.Required, is.RequestURL); err != nil {
		return "", &ValidationError{Field: "url", Value: raw, Err: err}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "url", Value: raw, Err: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &ValidationError{Field: "url", Value: raw, Err: errScheme}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &ValidationError{Field: "url", Value: raw, Err: errNoHost}
	}

	port := u.Port()
	switch {
	case port != "" && port != defaultPort[scheme]:
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	u.Scheme = scheme
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
		u.RawPath = ""
	}
	return u.String(), nil
}
