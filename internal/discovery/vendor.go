package discovery

import (
	"regexp"
	"strings"

	"github.com/shadowscan/shadowscan/internal/normalize"
	"github.com/shadowscan/shadowscan/internal/platform"
)

const minVendorLength = 3

var (
	// Placeholder display names the platforms synthesize when an app never
	// registered a human name, e.g. "OAuth App: 445566".
	placeholderName = regexp.MustCompile(`(?i)^(oauth app|service account|api client)\b`)

	// "... for Google Workspace", "... for Slack" style marketing tails.
	forPlatformTail = regexp.MustCompile(`(?i)\s+for\s+(google([ -]workspace)?|workspace|slack|microsoft([ -]365)?|office([ -]365)?|github|okta|gmail|drive|teams|sheets)$`)

	nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Suffix words that carry no vendor identity. Compared case-insensitively;
// the surviving prefix keeps its original casing.
var genericSuffixes = []string{
	"crm",
	"integration",
	"integrations",
	"connector",
	"plugin",
	"add-on",
	"addon",
	"app",
	"bot",
	"sync",
	"api",
	"oauth",
}

// Names that are generic placeholders rather than vendors.
var vendorDenyList = map[string]struct{}{
	"oauth app":       {},
	"service account": {},
	"token":           {},
	"api":             {},
	"app":             {},
	"script":          {},
	"test":            {},
	"unknown":         {},
	"my app":          {},
}

// ExtractVendorName derives a canonical vendor identity from an untrusted
// display name. The empty string means extraction failed; callers must not
// group such automations. Pure and idempotent.
func ExtractVendorName(displayName string) string {
	name := normalize.CollapseSpaces(displayName)
	if name == "" {
		return ""
	}
	if placeholderName.MatchString(name) {
		return ""
	}

	name = forPlatformTail.ReplaceAllString(name, "")

	fields := strings.Fields(name)
	for len(fields) > 1 {
		last := strings.ToLower(fields[len(fields)-1])
		if !isGenericSuffix(last) {
			break
		}
		fields = fields[:len(fields)-1]
	}
	name = strings.Join(fields, " ")

	if len(name) < minVendorLength {
		return ""
	}
	if _, denied := vendorDenyList[strings.ToLower(name)]; denied {
		return ""
	}
	return name
}

// VendorGroupKey builds the grouping identity for one vendor on one
// platform. Vendor name alone is never a grouping key: the same vendor on a
// different platform has an unrelated risk profile.
func VendorGroupKey(vendorName string, p platform.Platform) string {
	vendorName = strings.TrimSpace(vendorName)
	if vendorName == "" || !p.Valid() {
		return ""
	}
	key := nonKeyChars.ReplaceAllString(strings.ToLower(vendorName), "-")
	key = strings.Trim(key, "-")
	if key == "" {
		return ""
	}
	return key + "-" + p.String()
}

func isGenericSuffix(word string) bool {
	for _, suffix := range genericSuffixes {
		if word == suffix {
			return true
		}
	}
	return false
}
