// Package platform defines the closed set of workspace platforms that
// discovery can run against. Platform values are identity, never display
// text; display labels live in DisplayName.
package platform

import (
	"fmt"
	"strings"
)

type Platform string

const (
	GoogleWorkspace Platform = "google_workspace"
	Slack           Platform = "slack"
	Microsoft365    Platform = "microsoft_365"
	GitHub          Platform = "github"
	Okta            Platform = "okta"
)

// All returns every supported platform in registration order.
func All() []Platform {
	return []Platform{GoogleWorkspace, Slack, Microsoft365, GitHub, Okta}
}

// Parse maps a raw kind string onto a Platform. Unknown values are an error,
// never silently coerced.
func Parse(raw string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(raw))) {
	case GoogleWorkspace:
		return GoogleWorkspace, nil
	case Slack:
		return Slack, nil
	case Microsoft365:
		return Microsoft365, nil
	case GitHub:
		return GitHub, nil
	case Okta:
		return Okta, nil
	default:
		return "", fmt.Errorf("unknown platform %q", raw)
	}
}

func (p Platform) String() string {
	return string(p)
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	_, err := Parse(string(p))
	return err == nil
}

// DisplayName returns the human label for a platform. Identity stays the
// enum value; the label is presentation only.
func (p Platform) DisplayName() string {
	switch p {
	case GoogleWorkspace:
		return "Google Workspace"
	case Slack:
		return "Slack"
	case Microsoft365:
		return "Microsoft 365"
	case GitHub:
		return "GitHub"
	case Okta:
		return "Okta"
	default:
		return "Unknown"
	}
}
