package edgeauth

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrInvalidHost is returned for an empty host or one carrying path or
	// query characters.
	ErrInvalidHost = errors.New("invalid host")
	// ErrHostNotAllowed is returned when the host is not in the configured
	// allowlist.
	ErrHostNotAllowed = errors.New("host not allowed")
)

// ReturnURL is a validated, normalized redirect target.
type ReturnURL struct {
	Scheme string
	Host   string
	Path   string
	Query  url.Values
}

// BuildReturnURL validates scheme/host/return query parameters against the
// host allowlist and assembles an absolute redirect target. An empty
// allowlist permits any well-formed host. Hosts are matched lowercased;
// punycode and homoglyph forms are not normalized further.
func BuildReturnURL(scheme, host, ret string, allowedHosts []string) (*ReturnURL, error) {
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}

	host = strings.ToLower(host)
	if host == "" || strings.ContainsAny(host, "/?") {
		return nil, ErrInvalidHost
	}

	if len(allowedHosts) > 0 {
		allowed := false
		for _, candidate := range allowedHosts {
			if strings.ToLower(candidate) == host {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, ErrHostNotAllowed
		}
	}

	if ret == "" {
		ret = "/"
	}
	path := "/"
	query := url.Values{}
	if parsed, err := url.Parse(ret); err == nil {
		path = "/" + strings.TrimLeft(parsed.Path, "/")
		query = parsed.Query()
	}

	return &ReturnURL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
		Query:  query,
	}, nil
}

// String renders the absolute URL.
func (u *ReturnURL) String() string {
	built := url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
	}
	if len(u.Query) > 0 {
		built.RawQuery = u.Query.Encode()
	}
	return built.String()
}

// AppendQuery merges params into rawurl's query string, preserving any
// pre-existing parameters.
func AppendQuery(rawurl string, params url.Values) string {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return rawurl
	}
	query := parsed.Query()
	for key, values := range params {
		for _, value := range values {
			query.Set(key, value)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
