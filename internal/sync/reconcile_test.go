package sync

import (
	"testing"
	"time"

	"github.com/voiceline-ai/voiceline/internal/analytics"
	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
)

func localAgent(id, remoteID, name string) store.AgentRecord {
	return store.AgentRecord{
		ID:            id,
		RemoteAgentID: remoteID,
		Name:          name,
		CreatedAt:     analytics.CutoffDate.AddDate(0, 0, 1),
	}
}

func TestReconcileAgentsImport(t *testing.T) {
	remote := []platform.Agent{{AgentID: "r1", AgentName: "Bot"}}

	diff := ReconcileAgents(remote, nil)
	if len(diff.ToImport) != 1 || diff.ToImport[0].AgentID != "r1" {
		t.Fatalf("expected one import, got %+v", diff)
	}
	if len(diff.ToUpdate) != 0 || len(diff.Unchanged) != 0 {
		t.Fatalf("unexpected updates/unchanged: %+v", diff)
	}
}

func TestReconcileAgentsUpdateOnlyOnNameChange(t *testing.T) {
	remote := []platform.Agent{
		{AgentID: "r1", AgentName: "Renamed"},
		{AgentID: "r2", AgentName: "Same"},
	}
	local := []store.AgentRecord{
		localAgent("L1", "r1", "Old Name"),
		localAgent("L2", "r2", "Same"),
	}

	diff := ReconcileAgents(remote, local)
	if len(diff.ToImport) != 0 {
		t.Fatalf("unexpected imports: %+v", diff.ToImport)
	}
	if len(diff.ToUpdate) != 1 || diff.ToUpdate[0].Record.ID != "L1" || diff.ToUpdate[0].Name != "Renamed" {
		t.Fatalf("unexpected updates: %+v", diff.ToUpdate)
	}
	if len(diff.Unchanged) != 1 || diff.Unchanged[0].ID != "L2" {
		t.Fatalf("unexpected unchanged: %+v", diff.Unchanged)
	}
}

func TestReconcileAgentsIgnoresChatOnlyLocals(t *testing.T) {
	remote := []platform.Agent{{AgentID: "r1", AgentName: "Bot"}}
	local := []store.AgentRecord{localAgent("L1", "", "Chat Only")}

	diff := ReconcileAgents(remote, local)
	if len(diff.ToImport) != 1 {
		t.Fatalf("chat-only local must not satisfy a remote agent: %+v", diff)
	}
}

func TestReconcileAgentsIdempotent(t *testing.T) {
	remote := []platform.Agent{{AgentID: "r1", AgentName: "Bot"}}
	diff := ReconcileAgents(remote, nil)

	// Apply imports, then reconcile again: nothing left to do.
	var local []store.AgentRecord
	for _, ra := range diff.ToImport {
		local = append(local, ImportedAgent("L-"+ra.AgentID, ra, PlaceholderPrompt, analytics.CutoffDate.AddDate(0, 0, 1)))
	}
	again := ReconcileAgents(remote, local)
	if len(again.ToImport) != 0 || len(again.ToUpdate) != 0 {
		t.Fatalf("second reconcile not a no-op: %+v", again)
	}
}

func TestComputeStaleAgentsDanglingReference(t *testing.T) {
	remoteIDs := map[string]struct{}{"A": {}, "B": {}}
	local := []store.AgentRecord{
		localAgent("L1", "A", "a"),
		localAgent("L2", "B", "b"),
		localAgent("L3", "C", "c"),
	}

	stale := ComputeStaleAgents(remoteIDs, local)
	if len(stale) != 1 || stale[0].Record.ID != "L3" || stale[0].Reason != StaleReasonDeletedRemotely {
		t.Fatalf("expected exactly L3 stale, got %+v", stale)
	}
}

func TestComputeStaleAgentsAgePurge(t *testing.T) {
	old := localAgent("L1", "", "ancient")
	old.CreatedAt = analytics.CutoffDate.Add(-time.Hour)
	local := []store.AgentRecord{old, localAgent("L2", "", "fresh")}

	stale := ComputeStaleAgents(map[string]struct{}{}, local)
	if len(stale) != 1 || stale[0].Record.ID != "L1" || stale[0].Reason != StaleReasonCreatedBeforeCutoff {
		t.Fatalf("expected L1 purged by age, got %+v", stale)
	}
}

func TestImportedAgentSeedsDefaults(t *testing.T) {
	now := analytics.CutoffDate.AddDate(0, 0, 2)
	rec := ImportedAgent("L1", platform.Agent{AgentID: "r1"}, PlaceholderPrompt, now)
	if rec.Name != "Unnamed Agent" {
		t.Fatalf("expected default name, got %q", rec.Name)
	}
	if rec.VoiceConfig["voice_id"] != "11labs-Adrian" || rec.VoiceConfig["language"] != "en-US" {
		t.Fatalf("expected default voice config, got %+v", rec.VoiceConfig)
	}
	if rec.ChatConfig["llm_model"] != "gpt-4o" {
		t.Fatalf("expected default chat config, got %+v", rec.ChatConfig)
	}
	if rec.SystemPrompt != PlaceholderPrompt {
		t.Fatalf("expected placeholder prompt, got %q", rec.SystemPrompt)
	}
}

func TestReconcileKnowledgeBases(t *testing.T) {
	remote := []platform.KnowledgeBase{
		{KnowledgeBaseID: "k1", KnowledgeBaseName: "Docs"},
		{KnowledgeBaseID: "k2", KnowledgeBaseName: "FAQ"},
	}
	local := []store.KnowledgeBaseRecord{
		{ID: "L1", RemoteKBID: "k1", Name: "Docs", DocumentsCount: 3},
	}
	counts := map[string]int{"k1": 5, "k2": 2}

	diff := ReconcileKnowledgeBases(remote, local, counts)
	if len(diff.ToImport) != 1 || diff.ToImport[0].KnowledgeBaseID != "k2" {
		t.Fatalf("expected k2 import, got %+v", diff.ToImport)
	}
	if len(diff.ToUpdate) != 1 || diff.ToUpdate[0].DocumentsCount != 5 {
		t.Fatalf("expected count refresh to 5, got %+v", diff.ToUpdate)
	}
}
