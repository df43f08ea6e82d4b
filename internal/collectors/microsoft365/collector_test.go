package microsoft365

import (
	"reflect"
	"testing"

	"github.com/shadowscan/shadowscan/internal/platform"
)

func TestJoinPrincipalsWithGrants(t *testing.T) {
	t.Parallel()

	principals := []ServicePrincipal{
		{ID: "obj-1", AppID: "app-chatgpt", DisplayName: "ChatGPT", PublisherName: "OpenAI"},
		{ID: "obj-2", AppID: "app-idle", DisplayName: "Idle App"},
		{ID: "obj-3", AppID: "app-mi", DisplayName: "build-identity", ServicePrincipalType: "ManagedIdentity"},
	}
	grants := []PermissionGrant{
		{ID: "g1", ClientID: "obj-1", ConsentType: "Principal", PrincipalID: "user-1", Scope: "Mail.Read Files.Read.All"},
		{ID: "g2", ClientID: "obj-1", ConsentType: "AllPrincipals", Scope: "User.Read"},
	}

	candidates := joinPrincipalsWithGrants(principals, grants)
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(candidates))
	}

	chatgpt := candidates[0]
	if chatgpt.ExternalID != "app-chatgpt" {
		t.Fatalf("ExternalID = %q", chatgpt.ExternalID)
	}
	if chatgpt.Platform != platform.Microsoft365 {
		t.Fatalf("Platform = %q", chatgpt.Platform)
	}
	wantScopes := []string{"Files.Read.All", "Mail.Read", "User.Read"}
	if !reflect.DeepEqual(chatgpt.GrantedScopes, wantScopes) {
		t.Fatalf("GrantedScopes = %v, want %v", chatgpt.GrantedScopes, wantScopes)
	}
	if chatgpt.Activity == nil || !reflect.DeepEqual(chatgpt.Activity.Actors, []string{"user-1"}) {
		t.Fatalf("Activity = %+v", chatgpt.Activity)
	}

	idle := candidates[1]
	if idle.ExternalID != "app-idle" {
		t.Fatalf("ExternalID = %q", idle.ExternalID)
	}
	if len(idle.GrantedScopes) != 0 {
		t.Fatalf("GrantedScopes = %v, want empty", idle.GrantedScopes)
	}
}
