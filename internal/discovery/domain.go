package discovery

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeDomain reduces a raw domain or URL to its registrable
// (eTLD+1) form. IP literals and garbage reduce to "".
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err == nil && u.Host != "" {
		candidate = u.Host
	}
	candidate = strings.TrimSpace(candidate)
	candidate = strings.TrimPrefix(candidate, "*.")
	candidate = strings.Trim(candidate, ".")
	candidate = strings.TrimSuffix(candidate, ":443")
	candidate = strings.TrimSuffix(candidate, ":80")
	candidate = strings.ToLower(candidate)
	if ip := net.ParseIP(candidate); ip != nil {
		return ""
	}
	if after, ok := strings.CutPrefix(candidate, "www."); ok {
		candidate = after
	}
	eTLD, err := publicsuffix.EffectiveTLDPlusOne(candidate)
	if err != nil {
		return candidate
	}
	return strings.ToLower(strings.TrimSpace(eTLD))
}

// VendorNameFromDomain infers a best-effort vendor name from a client
// domain. Used as a fallback when display-name extraction yields nothing;
// the result still goes through the same grouping rules.
func VendorNameFromDomain(rawDomain string) string {
	domain := NormalizeDomain(rawDomain)
	if domain == "" {
		return ""
	}
	part := domain
	if idx := strings.Index(part, "."); idx > 0 {
		part = part[:idx]
	}
	part = strings.ReplaceAll(part, "-", " ")
	part = strings.TrimSpace(part)
	if len(part) < minVendorLength {
		return ""
	}
	return strings.ToUpper(part[:1]) + part[1:]
}
