package extract

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidURL is returned for values that cannot be a public web address.
	ErrInvalidURL = errors.New("invalid url")
	// ErrLoopbackHost is returned when the hostname points at the local machine.
	ErrLoopbackHost = errors.New("loopback host")
)

var schemeRe = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.\-]*://`)

// URLTier is the strictness of the pattern that found a URL.
type URLTier int

const (
	URLTierFullScheme URLTier = iota
	URLTierWWW
	URLTierBareDomain
)

// Confidence returns the extraction confidence associated with the tier.
func (t URLTier) Confidence() int {
	switch t {
	case URLTierFullScheme:
		return 95
	case URLTierWWW:
		return 85
	default:
		return 70
	}
}

// NormalizeURL canonicalizes a user supplied address. It adds a missing
// https scheme, lowercases the host, strips default ports, drops fragments
// and trailing slashes, and rejects loopback or undotted hosts.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimRight(raw, ".,;:!?)]}'\"")
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if strings.ContainsAny(raw, " \t\r\n<>") {
		return "", fmt.Errorf("%w: contains whitespace or angle brackets", ErrInvalidURL)
	}
	if !schemeRe.MatchString(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if IsLoopbackHost(host) {
		return "", fmt.Errorf("%w: %s", ErrLoopbackHost, host)
	}
	if !strings.Contains(host, ".") && host != "localhost" {
		return "", fmt.Errorf("%w: hostname %q has no domain", ErrInvalidURL, host)
	}
	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") || strings.Contains(host, "..") {
		return "", fmt.Errorf("%w: malformed hostname %q", ErrInvalidURL, host)
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	u.Scheme = scheme
	u.Host = host
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	host = strings.Trim(strings.ToLower(host), "[]")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}

// Hostname returns the host of a normalized URL without a leading "www.".
func Hostname(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
