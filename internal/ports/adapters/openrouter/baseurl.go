package openrouter

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = []string{"openrouter.ai", "api.openrouter.ai"}

type baseURLError struct {
	raw    string
	reason string
}

func (e *baseURLError) Error() string {
	return fmt.Sprintf("invalid OPENROUTER_BASE_URL %q: %s", e.raw, e.reason)
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(raw, "/")
}

// ValidateBaseURL accepts only https URLs (http for loopback hosts) whose host
// is in allowedHosts, or in the openrouter.ai defaults when the list is empty.
func ValidateBaseURL(raw string, allowedHosts []string) error {
	_, err := parseBaseURL(raw, allowedHosts)
	return err
}

func parseBaseURL(raw string, allowedHosts []string) (*url.URL, error) {
	raw = normalizeBaseURL(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid OPENROUTER_BASE_URL: %w", err)
	}
	fail := func(reason string) (*url.URL, error) {
		return nil, &baseURLError{raw: raw, reason: reason}
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case !u.IsAbs() || host == "":
		return fail("absolute URL with host is required")
	case u.User != nil:
		return fail("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return fail("query and fragment are not allowed")
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !isLoopback(host) {
			return fail("https is required")
		}
	default:
		return fail("https is required")
	}

	if !hostAllowed(host, allowedHosts) {
		return fail(fmt.Sprintf("host %q is not in OPENROUTER_ALLOWED_HOSTS", host))
	}
	return u, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func hostAllowed(host string, allowedHosts []string) bool {
	hosts := cleanHosts(allowedHosts)
	if len(hosts) == 0 {
		hosts = defaultAllowedHosts
	}
	for _, h := range hosts {
		if h == host {
			return true
		}
	}
	return false
}

// cleanHosts lowercases entries and strips schemes, ports and slashes.
func cleanHosts(in []string) []string {
	var out []string
	for _, h := range in {
		v := strings.ToLower(strings.TrimSpace(h))
		if i := strings.Index(v, "://"); i >= 0 {
			v = v[i+3:]
		}
		v = strings.Trim(v, "/")
		if hp, _, err := net.SplitHostPort(v); err == nil {
			v = hp
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
