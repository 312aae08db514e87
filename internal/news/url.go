package news

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL turns an href found on base into an absolute, fragment-free article URL.
// Empty, javascript: and fragment-only hrefs are rejected with ErrInvalidURL.
func ResolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: parse href: %w", ErrInvalidURL, err)
	}
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("%w: parse base: %w", ErrInvalidURL, err)
		}
		ref = b.ResolveReference(ref)
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	ref.Scheme = strings.ToLower(ref.Scheme)
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, ref.Scheme)
	}
	if ref.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, href)
	}
	ref.Host = strings.ToLower(ref.Host)
	return ref.String(), nil
}

// BareDomain lowercases a domain and strips a leading "www.".
func BareDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
}

// SameSite reports whether rawURL is served by domain or one of its subdomains.
func SameSite(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := BareDomain(u.Hostname())
	d := BareDomain(domain)
	if host == "" || d == "" {
		return false
	}
	return host == d || strings.HasSuffix(host, "."+d)
}
