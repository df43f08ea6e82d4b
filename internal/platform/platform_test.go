package platform

import "testing"

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		input   string
		want    Platform
		wantErr bool
	}{
		{name: "exact", input: "google_workspace", want: GoogleWorkspace},
		{name: "case and whitespace folded", input: "  Slack ", want: Slack},
		{name: "microsoft", input: "microsoft_365", want: Microsoft365},
		{name: "github", input: "github", want: GitHub},
		{name: "okta", input: "okta", want: Okta},
		{name: "unknown", input: "zoom", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "display label is not identity", input: "Google Workspace", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("Parse(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestAllValid(t *testing.T) {
	t.Parallel()

	for _, p := range All() {
		if !p.Valid() {
			t.Fatalf("platform %q from All() is not valid", p)
		}
		if p.DisplayName() == "Unknown" {
			t.Fatalf("platform %q has no display name", p)
		}
	}
	if Platform("zoom").Valid() {
		t.Fatal("unsupported platform reported valid")
	}
}
