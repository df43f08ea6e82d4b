package discovery

import (
	"reflect"
	"testing"

	"github.com/shadowscan/shadowscan/internal/platform"
)

func TestDetect_DisplayNameMatch(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultRuleSet())
	result := detector.Detect(Candidate{
		ExternalID:  "1010.apps.googleusercontent.com",
		DisplayName: "ChatGPT",
		Platform:    platform.GoogleWorkspace,
		GrantedScopes: []string{
			"drive.readonly",
			"userinfo.email",
			"userinfo.profile",
			"openid",
		},
	})

	if !result.IsAIPlatform {
		t.Fatal("expected AI platform detection")
	}
	if result.PlatformLabel != "OpenAI / ChatGPT" {
		t.Fatalf("PlatformLabel = %q, want %q", result.PlatformLabel, "OpenAI / ChatGPT")
	}
	if result.Confidence <= 0 || result.Confidence > 100 {
		t.Fatalf("Confidence = %d, want (0, 100]", result.Confidence)
	}
	if len(result.MatchedSignals) != 1 {
		t.Fatalf("MatchedSignals = %v, want single metadata signal", result.MatchedSignals)
	}
	if got := result.MatchedSignals[0]; got.Source != SignalSourceMetadata || got.Token != "chatgpt" {
		t.Fatalf("signal = %+v", got)
	}
}

func TestDetect_SourceOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultRuleSet())
	candidate := Candidate{
		ExternalID:    "script-77",
		DisplayName:   "Claude Summarizer",
		Platform:      platform.GoogleWorkspace,
		GrantedScopes: []string{"https://api.openai.com/v1"},
		SourceText:    `const url = "https://api.anthropic.com/v1/messages";`,
	}

	result := detector.Detect(candidate)
	if !result.IsAIPlatform {
		t.Fatal("expected detection")
	}
	// Metadata evaluates before scopes, so the label names Claude even
	// though an OpenAI domain also appears in the scope set.
	if result.PlatformLabel != "Anthropic / Claude" {
		t.Fatalf("PlatformLabel = %q, want first-source match", result.PlatformLabel)
	}

	wantOrder := []SignalSource{SignalSourceMetadata, SignalSourceScopes, SignalSourceContent}
	var gotOrder []SignalSource
	lastIdx := -1
	for _, sig := range result.MatchedSignals {
		idx := signalSourceIndex(sig.Source, wantOrder)
		if idx < lastIdx {
			t.Fatalf("signals out of source order: %v", result.MatchedSignals)
		}
		lastIdx = idx
		gotOrder = append(gotOrder, sig.Source)
	}
	if len(gotOrder) < 3 {
		t.Fatalf("expected signals from all three sources, got %v", result.MatchedSignals)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultRuleSet())
	candidate := Candidate{
		ExternalID:  "A100",
		DisplayName: "Perplexity Search for Slack",
		Platform:    platform.Slack,
		SourceText:  "fetch('https://api.perplexity.ai/chat/completions')",
	}

	first := detector.Detect(candidate)
	for i := 0; i < 5; i++ {
		if got := detector.Detect(candidate); !reflect.DeepEqual(got, first) {
			t.Fatalf("Detect() not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestDetect_NoSignals(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultRuleSet())
	result := detector.Detect(Candidate{
		ExternalID:    "calendar-sync-2",
		DisplayName:   "Team Calendar Sync",
		Platform:      platform.Microsoft365,
		GrantedScopes: []string{"calendars.read"},
	})

	if result.IsAIPlatform {
		t.Fatal("expected no detection")
	}
	if result.Confidence != 0 {
		t.Fatalf("Confidence = %d, want 0", result.Confidence)
	}
	if result.PlatformLabel != "" {
		t.Fatalf("PlatformLabel = %q, want empty", result.PlatformLabel)
	}
	if len(result.MatchedSignals) != 0 {
		t.Fatalf("MatchedSignals = %v, want empty", result.MatchedSignals)
	}
}

func TestDetect_MalformedFieldsDegradeToNoMatch(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultRuleSet())
	result := detector.Detect(Candidate{
		GrantedScopes: []string{"", "   "},
	})
	if result.IsAIPlatform || result.Confidence != 0 {
		t.Fatalf("empty candidate should yield zero detection, got %+v", result)
	}
}

func TestDetect_ConfidenceCapped(t *testing.T) {
	t.Parallel()

	detector := NewDetector(DefaultRuleSet())
	result := detector.Detect(Candidate{
		ExternalID:  "kitchen-sink",
		DisplayName: "openai chatgpt anthropic claude gemini perplexity mistral cohere",
		Platform:    platform.GitHub,
		SourceText:  "api.openai.com api.anthropic.com api.mistral.ai api.cohere.com",
	})
	if result.Confidence != 100 {
		t.Fatalf("Confidence = %d, want capped at 100", result.Confidence)
	}
}

func signalSourceIndex(s SignalSource, order []SignalSource) int {
	for i, v := range order {
		if v == s {
			return i
		}
	}
	return -1
}
