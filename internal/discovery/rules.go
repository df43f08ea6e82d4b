package discovery

// Rule is one detection token in a versioned rule table. Rules are injected
// into the Detector at construction so the token set can change without code
// changes.
type Rule struct {
	Source        SignalSource
	Token         string
	Weight        int
	PlatformLabel string
}

// RuleSet is a versioned collection of detection rules. Any change to the
// table is a new version, not a runtime toggle.
type RuleSet struct {
	Version string
	Rules   []Rule
}

// RulesFor returns the rules evaluated for a given signal source, in table
// order. The content pass reuses the metadata token set on top of its own
// endpoint rules: script source quoting a vendor name is as telling as a
// display name doing so.
func (rs RuleSet) RulesFor(source SignalSource) []Rule {
	out := make([]Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Source == source {
			out = append(out, r)
		}
	}
	if source == SignalSourceContent {
		for _, r := range rs.Rules {
			if r.Source == SignalSourceMetadata {
				out = append(out, r)
			}
		}
	}
	return out
}

const (
	metadataTokenWeight = 50
	scopeDomainWeight   = 30
	contentTokenWeight  = 35
)

// DefaultRuleSet is the current curated AI-service token table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version: "2026-08",
		Rules: []Rule{
			// Vendor names as they appear in app metadata and client IDs.
			{Source: SignalSourceMetadata, Token: "openai", Weight: metadataTokenWeight, PlatformLabel: "OpenAI / ChatGPT"},
			{Source: SignalSourceMetadata, Token: "chatgpt", Weight: metadataTokenWeight, PlatformLabel: "OpenAI / ChatGPT"},
			{Source: SignalSourceMetadata, Token: "anthropic", Weight: metadataTokenWeight, PlatformLabel: "Anthropic / Claude"},
			{Source: SignalSourceMetadata, Token: "claude", Weight: metadataTokenWeight, PlatformLabel: "Anthropic / Claude"},
			{Source: SignalSourceMetadata, Token: "gemini", Weight: metadataTokenWeight, PlatformLabel: "Google Gemini"},
			{Source: SignalSourceMetadata, Token: "perplexity", Weight: metadataTokenWeight, PlatformLabel: "Perplexity"},
			{Source: SignalSourceMetadata, Token: "mistral", Weight: metadataTokenWeight, PlatformLabel: "Mistral AI"},
			{Source: SignalSourceMetadata, Token: "cohere", Weight: metadataTokenWeight, PlatformLabel: "Cohere"},
			{Source: SignalSourceMetadata, Token: "hugging face", Weight: metadataTokenWeight, PlatformLabel: "Hugging Face"},
			{Source: SignalSourceMetadata, Token: "huggingface", Weight: metadataTokenWeight, PlatformLabel: "Hugging Face"},
			{Source: SignalSourceMetadata, Token: "deepseek", Weight: metadataTokenWeight, PlatformLabel: "DeepSeek"},
			{Source: SignalSourceMetadata, Token: "copilot", Weight: metadataTokenWeight, PlatformLabel: "Microsoft Copilot"},

			// AI-service API domains found in scope strings.
			{Source: SignalSourceScopes, Token: "api.openai.com", Weight: scopeDomainWeight, PlatformLabel: "OpenAI / ChatGPT"},
			{Source: SignalSourceScopes, Token: "api.anthropic.com", Weight: scopeDomainWeight, PlatformLabel: "Anthropic / Claude"},
			{Source: SignalSourceScopes, Token: "generativelanguage.googleapis.com", Weight: scopeDomainWeight, PlatformLabel: "Google Gemini"},
			{Source: SignalSourceScopes, Token: "aiplatform.googleapis.com", Weight: scopeDomainWeight, PlatformLabel: "Google Vertex AI"},
			{Source: SignalSourceScopes, Token: "api.perplexity.ai", Weight: scopeDomainWeight, PlatformLabel: "Perplexity"},
			{Source: SignalSourceScopes, Token: "api.mistral.ai", Weight: scopeDomainWeight, PlatformLabel: "Mistral AI"},
			{Source: SignalSourceScopes, Token: "api.cohere.com", Weight: scopeDomainWeight, PlatformLabel: "Cohere"},

			// Endpoint and SDK strings found in script source.
			{Source: SignalSourceContent, Token: "api.openai.com", Weight: contentTokenWeight, PlatformLabel: "OpenAI / ChatGPT"},
			{Source: SignalSourceContent, Token: "api.anthropic.com", Weight: contentTokenWeight, PlatformLabel: "Anthropic / Claude"},
			{Source: SignalSourceContent, Token: "anthropic.com", Weight: contentTokenWeight, PlatformLabel: "Anthropic / Claude"},
			{Source: SignalSourceContent, Token: "generativelanguage.googleapis.com", Weight: contentTokenWeight, PlatformLabel: "Google Gemini"},
			{Source: SignalSourceContent, Token: "api.perplexity.ai", Weight: contentTokenWeight, PlatformLabel: "Perplexity"},
			{Source: SignalSourceContent, Token: "api.mistral.ai", Weight: contentTokenWeight, PlatformLabel: "Mistral AI"},
			{Source: SignalSourceContent, Token: "api.cohere.com", Weight: contentTokenWeight, PlatformLabel: "Cohere"},
			{Source: SignalSourceContent, Token: "api-inference.huggingface.co", Weight: contentTokenWeight, PlatformLabel: "Hugging Face"},
		},
	}
}
