package discovery

import (
	"fmt"
	"strings"
)

// ScoringRules are the versioned risk constants. They are fixed at
// construction; changing a constant is a new rule-set version, never a
// runtime toggle.
type ScoringRules struct {
	Version string

	AIPlatformWeight int

	ScopeBreadthThreshold int
	ScopeBreadthWeight    int

	SensitiveCategoryWeight int
	SensitiveCategories     []string

	ActivityEventThreshold int64
	ActivityWeight         int
}

// DefaultScoringRules is the current tuned constant set.
func DefaultScoringRules() ScoringRules {
	return ScoringRules{
		Version: "2026-08",

		AIPlatformWeight: 40,

		ScopeBreadthThreshold: 3,
		ScopeBreadthWeight:    10,

		SensitiveCategoryWeight: 15,
		SensitiveCategories: []string{
			"admin",
			"directory",
			"drive",
			"mail",
			"gmail",
			"files",
			"sites",
			"calendar",
			"readwrite",
			"full_access",
		},

		ActivityEventThreshold: 50,
		ActivityWeight:         10,
	}
}

// Scorer turns a candidate plus its detection into a risk assessment.
// Deterministic additive rules, applied in fixed order; each rule appends
// one factor per firing. Factor ordering is part of the contract.
type Scorer struct {
	rules ScoringRules
}

func NewScorer(rules ScoringRules) *Scorer {
	return &Scorer{rules: rules}
}

func (s *Scorer) Score(c Candidate, detection DetectionResult) RiskAssessment {
	var assessment RiskAssessment
	scopes := NormalizeScopes(c.GrantedScopes)

	if detection.IsAIPlatform {
		assessment.Score += s.rules.AIPlatformWeight
		label := detection.PlatformLabel
		if label == "" {
			label = "unidentified AI service"
		}
		assessment.Factors = append(assessment.Factors, "AI platform integration detected: "+label)
	}

	if threshold := s.rules.ScopeBreadthThreshold; len(scopes) > threshold {
		assessment.Score += s.rules.ScopeBreadthWeight * (len(scopes) - threshold)
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("Broad permission grant: %d scopes", len(scopes)))
	}

	for _, category := range s.rules.SensitiveCategories {
		if !scopeSetContains(scopes, category) {
			continue
		}
		assessment.Score += s.rules.SensitiveCategoryWeight
		assessment.Factors = append(assessment.Factors, "Sensitive scope category: "+category)
	}

	if c.Activity != nil && c.Activity.Events30d >= s.rules.ActivityEventThreshold {
		assessment.Score += s.rules.ActivityWeight
		assessment.Factors = append(assessment.Factors, fmt.Sprintf("Elevated recent activity: %d events in 30 days", c.Activity.Events30d))
	}

	if assessment.Score > 100 {
		assessment.Score = 100
	}
	if assessment.Score < 0 {
		assessment.Score = 0
	}
	assessment.Level = RiskLevelFromScore(assessment.Score)
	return assessment
}

// RiskLevelFromScore maps a clamped score onto the categorical level.
func RiskLevelFromScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskLevelCritical
	case score >= 60:
		return RiskLevelHigh
	case score >= 30:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

func scopeSetContains(scopes []string, needle string) bool {
	for _, scope := range scopes {
		if strings.Contains(scope, needle) {
			return true
		}
	}
	return false
}
