// Package redact strips endpoint URLs out of errors before they reach the
// model or a client. RPC and data API URLs routinely carry API keys in
// their path or query.
package redact

import (
	"net/url"
	"regexp"
)

// urlPattern leaves trailing punctuation outside the match
var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s"'<>]*[^\s"'<>:,.;)\]]`)

// URL reduces a URL to scheme and host
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<url>"
	}
	return u.Scheme + "://" + u.Host
}

// String replaces every URL in s with its scheme and host
func String(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, URL)
}

// Error returns err with URLs removed from its message. The original
// error stays reachable through errors.Is and errors.As.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return &redacted{msg: String(err.Error()), err: err}
}

type redacted struct {
	msg string
	err error
}

func (r *redacted) Error() string { return r.msg }
func (r *redacted) Unwrap() error { return r.err }
