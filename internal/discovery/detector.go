package discovery

import "strings"

const maxConfidence = 100

// highConfidenceWeight is the floor for a match to name the platform label.
// Weaker matches still raise confidence but never pick the label.
const highConfidenceWeight = 30

// Detector classifies candidates as AI-service integrations using a fixed
// rule table. Detect is pure and never fails: malformed or absent candidate
// fields read as "no match" for that signal source.
type Detector struct {
	rules RuleSet
}

func NewDetector(rules RuleSet) *Detector {
	return &Detector{rules: rules}
}

// Detect evaluates the three signal sources in fixed order (metadata,
// scopes, content) so MatchedSignals ordering is deterministic. The platform
// label comes from the first high-confidence match in that order.
func (d *Detector) Detect(c Candidate) DetectionResult {
	var result DetectionResult

	metadataText := strings.ToLower(strings.TrimSpace(c.DisplayName + " " + c.ClientIDText))
	scopeText := strings.Join(NormalizeScopes(c.GrantedScopes), " ")
	contentText := strings.ToLower(c.SourceText)

	d.scan(&result, SignalSourceMetadata, metadataText)
	d.scan(&result, SignalSourceScopes, scopeText)
	d.scan(&result, SignalSourceContent, contentText)

	if result.Confidence > maxConfidence {
		result.Confidence = maxConfidence
	}
	result.IsAIPlatform = result.Confidence > 0
	return result
}

func (d *Detector) scan(result *DetectionResult, source SignalSource, haystack string) {
	if haystack == "" {
		return
	}
	seen := make(map[string]struct{})
	for _, rule := range d.rules.RulesFor(source) {
		token := strings.ToLower(strings.TrimSpace(rule.Token))
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		if !strings.Contains(haystack, token) {
			continue
		}
		seen[token] = struct{}{}
		result.Confidence += rule.Weight
		result.MatchedSignals = append(result.MatchedSignals, MatchedSignal{Source: source, Token: token})
		if result.PlatformLabel == "" && rule.Weight >= highConfidenceWeight && rule.PlatformLabel != "" {
			result.PlatformLabel = rule.PlatformLabel
		}
	}
}
