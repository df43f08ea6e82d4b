package slack

import (
	"reflect"
	"strconv"
	"testing"
	"time"
)

func logEntry(appID, appType, changeType, scope, user string, at time.Time) IntegrationLog {
	return IntegrationLog{
		AppID:      appID,
		AppType:    appType,
		ChangeType: changeType,
		Scope:      scope,
		UserName:   user,
		DateRaw:    strconv.FormatInt(at.Unix(), 10),
	}
}

func TestCandidatesFromLogsFoldsPerApp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	logs := []IntegrationLog{
		logEntry("A111", "Claude", "added", "channels:read,chat:write", "alice", now.Add(-48*time.Hour)),
		logEntry("A111", "Claude", "expanded", "files:read", "bob", now.Add(-24*time.Hour)),
		logEntry("A222", "Old Importer", "added", "files:read", "carol", now.Add(-90*24*time.Hour)),
		logEntry("A222", "Old Importer", "removed", "", "carol", now.Add(-60*24*time.Hour)),
	}

	candidates := candidatesFromLogs(logs, now)
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}

	got := candidates[0]
	if got.ExternalID != "A111" {
		t.Fatalf("ExternalID = %q", got.ExternalID)
	}
	if got.DisplayName != "Claude" {
		t.Fatalf("DisplayName = %q", got.DisplayName)
	}
	wantScopes := []string{"channels:read", "chat:write", "files:read"}
	if !reflect.DeepEqual(got.GrantedScopes, wantScopes) {
		t.Fatalf("GrantedScopes = %v, want %v", got.GrantedScopes, wantScopes)
	}
	if got.Activity == nil {
		t.Fatal("Activity = nil")
	}
	if got.Activity.Events30d != 2 {
		t.Fatalf("Events30d = %d, want 2", got.Activity.Events30d)
	}
	if !reflect.DeepEqual(got.Activity.Actors, []string{"alice", "bob"}) {
		t.Fatalf("Actors = %v", got.Activity.Actors)
	}
}

func TestCandidatesFromLogsReinstallSurvivesRemoval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	logs := []IntegrationLog{
		logEntry("A333", "Zapier", "added", "chat:write", "dana", now.Add(-72*time.Hour)),
		logEntry("A333", "Zapier", "removed", "", "dana", now.Add(-48*time.Hour)),
		logEntry("A333", "Zapier", "added", "chat:write", "dana", now.Add(-1*time.Hour)),
	}

	candidates := candidatesFromLogs(logs, now)
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}
	if candidates[0].ExternalID != "A333" {
		t.Fatalf("ExternalID = %q", candidates[0].ExternalID)
	}
}

func TestIntegrationLogDateParsesEpochSeconds(t *testing.T) {
	t.Parallel()

	entry := IntegrationLog{DateRaw: "1767139200"}
	if got := entry.Date(); got.IsZero() {
		t.Fatal("Date() returned zero time")
	}
	if got := (IntegrationLog{DateRaw: "not-a-number"}).Date(); !got.IsZero() {
		t.Fatalf("Date() = %v, want zero", got)
	}
}
