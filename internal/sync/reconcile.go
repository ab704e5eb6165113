package sync

import (
	"time"

	"github.com/voiceline-ai/voiceline/internal/analytics"
	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
)

// AgentNameUpdate refreshes a local record's display name from remote truth.
// Only the name is synced on update; system prompt and configs stay local so
// operator edits are never clobbered. Import is the one place that seeds full
// config.
type AgentNameUpdate struct {
	Record store.AgentRecord
	Name   string
}

// AgentDiff is the decision set produced by reconciling local records against
// the remote authoritative list. Pure data; the orchestrator applies it.
type AgentDiff struct {
	ToImport  []platform.Agent
	ToUpdate  []AgentNameUpdate
	Unchanged []store.AgentRecord
}

// ReconcileAgents diffs the remote authoritative agent list against local
// records. Local records with no remote linkage are chat-only agents and are
// never subject to sync. Running the result through the store and then
// reconciling again yields an empty diff: the operation is idempotent.
func ReconcileAgents(remote []platform.Agent, local []store.AgentRecord) AgentDiff {
	index := make(map[string]store.AgentRecord, len(local))
	for _, rec := range local {
		if rec.RemoteAgentID != "" {
			index[rec.RemoteAgentID] = rec
		}
	}

	var diff AgentDiff
	for _, ra := range remote {
		if ra.AgentID == "" {
			continue
		}
		rec, ok := index[ra.AgentID]
		if !ok {
			diff.ToImport = append(diff.ToImport, ra)
			continue
		}
		if rec.Name != ra.AgentName {
			diff.ToUpdate = append(diff.ToUpdate, AgentNameUpdate{Record: rec, Name: ra.AgentName})
		} else {
			diff.Unchanged = append(diff.Unchanged, rec)
		}
	}
	return diff
}

// KnowledgeBaseUpdate refreshes a local KB's name and source count.
type KnowledgeBaseUpdate struct {
	Record         store.KnowledgeBaseRecord
	Name           string
	DocumentsCount int
}

// KnowledgeBaseDiff mirrors AgentDiff for knowledge bases.
type KnowledgeBaseDiff struct {
	ToImport  []platform.KnowledgeBase
	ToUpdate  []KnowledgeBaseUpdate
	Unchanged []store.KnowledgeBaseRecord
}

// ReconcileKnowledgeBases diffs remote knowledge bases against local records.
// counts maps remote KB id to its current source count; a KB absent from the
// map keeps its locally stored count.
func ReconcileKnowledgeBases(remote []platform.KnowledgeBase, local []store.KnowledgeBaseRecord, counts map[string]int) KnowledgeBaseDiff {
	index := make(map[string]store.KnowledgeBaseRecord, len(local))
	for _, rec := range local {
		if rec.RemoteKBID != "" {
			index[rec.RemoteKBID] = rec
		}
	}

	var diff KnowledgeBaseDiff
	for _, rkb := range remote {
		if rkb.KnowledgeBaseID == "" {
			continue
		}
		rec, ok := index[rkb.KnowledgeBaseID]
		if !ok {
			diff.ToImport = append(diff.ToImport, rkb)
			continue
		}
		count, known := counts[rkb.KnowledgeBaseID]
		if !known {
			count = rec.DocumentsCount
		}
		if rec.Name != rkb.KnowledgeBaseName || rec.DocumentsCount != count {
			diff.ToUpdate = append(diff.ToUpdate, KnowledgeBaseUpdate{Record: rec, Name: rkb.KnowledgeBaseName, DocumentsCount: count})
		} else {
			diff.Unchanged = append(diff.Unchanged, rec)
		}
	}
	return diff
}

// Stale-record reasons.
const (
	StaleReasonDeletedRemotely     = "deleted_remotely"
	StaleReasonCreatedBeforeCutoff = "created_before_cutoff"
)

// StaleAgent is a local record scheduled for purge, with the reason surfaced
// to the cleanup response.
type StaleAgent struct {
	Record store.AgentRecord
	Reason string
}

// ComputeStaleAgents finds local records whose non-empty remote reference no
// longer exists remotely (drift), plus records created before the fixed
// cutoff regardless of linkage (independent age-based policy layered on top).
func ComputeStaleAgents(remoteIDs map[string]struct{}, local []store.AgentRecord) []StaleAgent {
	var stale []StaleAgent
	for _, rec := range local {
		if rec.RemoteAgentID != "" {
			if _, ok := remoteIDs[rec.RemoteAgentID]; !ok {
				stale = append(stale, StaleAgent{Record: rec, Reason: StaleReasonDeletedRemotely})
				continue
			}
		}
		if !rec.CreatedAt.IsZero() && rec.CreatedAt.Before(analytics.CutoffDate) {
			stale = append(stale, StaleAgent{Record: rec, Reason: StaleReasonCreatedBeforeCutoff})
		}
	}
	return stale
}

// ImportedAgent synthesizes the local record for a remote agent seen for the
// first time. systemPrompt comes from the linked LLM resource when it could
// be resolved, or a placeholder otherwise.
func ImportedAgent(id string, ra platform.Agent, systemPrompt string, now time.Time) store.AgentRecord {
	name := ra.AgentName
	if name == "" {
		name = "Unnamed Agent"
	}
	voiceID := ra.VoiceID
	if voiceID == "" {
		voiceID = "11labs-Adrian"
	}
	language := ra.Language
	if language == "" {
		language = "en-US"
	}
	var llmID string
	if ra.ResponseEngine != nil {
		llmID = ra.ResponseEngine.LLMID
	}
	return store.AgentRecord{
		ID:              id,
		RemoteAgentID:   ra.AgentID,
		RemoteLLMID:     llmID,
		Name:            name,
		Description:     "Imported from cloud",
		Type:            "voice",
		Status:          "active",
		SystemPrompt:    systemPrompt,
		GreetingMessage: "Hello! How can I help you today?",
		VoiceConfig: map[string]any{
			"voice_id":                 voiceID,
			"language":                 language,
			"responsiveness":           ra.Responsiveness,
			"interruption_sensitivity": ra.InterruptionSensitivity,
			"enable_backchannel":       ra.EnableBackchannel,
		},
		ChatConfig: map[string]any{
			"llm_provider": "openai",
			"llm_model":    "gpt-4o",
			"temperature":  0.7,
			"max_tokens":   2048,
		},
		Tools:          []string{},
		KnowledgeBases: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PlaceholderPrompt is used when the imported agent's LLM resource could not
// be resolved.
const PlaceholderPrompt = "Voice agent created from cloud dashboard"
