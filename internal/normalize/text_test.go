package normalize

import "testing"

func TestCollapseSpaces(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  string
	}{
		{input: "  Attio   CRM ", want: "Attio CRM"},
		{input: "\tChatGPT\n", want: "ChatGPT"},
		{input: "", want: ""},
		{input: "   ", want: ""},
	}
	for _, tc := range cases {
		if got := CollapseSpaces(tc.input); got != tc.want {
			t.Fatalf("CollapseSpaces(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestEqualFoldTrimmed(t *testing.T) {
	t.Parallel()

	if !EqualFoldTrimmed(" OpenAI ", "openai") {
		t.Fatal("expected fold match")
	}
	if EqualFoldTrimmed("openai", "anthropic") {
		t.Fatal("unexpected match")
	}
}
