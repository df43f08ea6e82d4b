// Package discovery holds the classification core: vendor extraction,
// AI-platform detection, and risk scoring for automations discovered on
// workspace platforms. Everything in this package is pure; collectors and
// persistence live elsewhere.
package discovery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// SignalSource is one of the independent evidence channels the detector
// evaluates, always in declaration order.
type SignalSource string

const (
	SignalSourceMetadata SignalSource = "metadata"
	SignalSourceScopes   SignalSource = "scopes"
	SignalSourceContent  SignalSource = "content"
)

// ErrInvalidCandidate marks candidates that are structurally unusable and
// must be excluded from reconciliation.
var ErrInvalidCandidate = errors.New("invalid candidate")

// ActivitySignals carries optional usage metadata. It weighs into risk
// scoring only, never into identity.
type ActivitySignals struct {
	Events30d  int64
	LastSeenAt time.Time
	Actors     []string
}

// Candidate is a raw, not-yet-classified integration handed over by a
// platform collector.
type Candidate struct {
	ExternalID    string
	DisplayName   string
	Platform      platform.Platform
	ClientIDText  string
	GrantedScopes []string
	Activity      *ActivitySignals
	SourceText    string
}

// Validate rejects candidates that cannot be identified. Optional fields are
// never validation failures; they degrade to "no signal" downstream.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.ExternalID) == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidCandidate)
	}
	if !c.Platform.Valid() {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidCandidate, c.Platform)
	}
	return nil
}

// MatchedSignal records one token that contributed to a detection, kept for
// auditability.
type MatchedSignal struct {
	Source SignalSource `json:"source"`
	Token  string       `json:"token"`
}

// DetectionResult is the detector's verdict for a single candidate.
type DetectionResult struct {
	IsAIPlatform   bool            `json:"is_ai_platform"`
	PlatformLabel  string          `json:"platform_label,omitempty"`
	Confidence     int             `json:"confidence"`
	MatchedSignals []MatchedSignal `json:"matched_signals,omitempty"`
}

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Rank orders levels for comparisons and sorting. Higher is worse.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelCritical:
		return 3
	case RiskLevelHigh:
		return 2
	case RiskLevelMedium:
		return 1
	default:
		return 0
	}
}

// RiskAssessment is the scorer's output. Factors keep rule-evaluation order;
// tests assert the ordering.
type RiskAssessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors,omitempty"`
}

// Identity is the only legitimate key for a persisted automation. It never
// changes across updates.
type Identity struct {
	OrgID      uuid.UUID
	Platform   platform.Platform
	ExternalID string
}

func (id Identity) String() string {
	return id.OrgID.String() + "/" + id.Platform.String() + "/" + id.ExternalID
}

// Automation is the persisted record owned by the aggregator. All fields
// outside Identity are overwritten on re-discovery.
type Automation struct {
	OrgID            uuid.UUID
	Platform         platform.Platform
	ExternalID       string
	DisplayName      string
	VendorName       string
	VendorGroupKey   string
	GrantedScopes    []string
	Detection        DetectionResult
	Risk             RiskAssessment
	FirstSeenAt      time.Time
	LastDiscoveredAt time.Time
}

func (a Automation) Identity() Identity {
	return Identity{OrgID: a.OrgID, Platform: a.Platform, ExternalID: a.ExternalID}
}
