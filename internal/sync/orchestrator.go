package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/voiceline-ai/voiceline/internal/analytics"
	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/store"
)

// ErrSyncInProgress is returned when another sync of the same kind holds the
// lock. Concurrent reconciliation of the same entity kind would race on
// imports, so operations are serialized per kind.
var ErrSyncInProgress = errors.New("sync already running")

// Registry is the slice of the voice-platform client reconciliation and
// analytics need. *platform.Client satisfies it.
type Registry interface {
	ListAgents(ctx context.Context) ([]platform.Agent, error)
	GetLLM(ctx context.Context, llmID string) (platform.LLM, error)
	ListKnowledgeBases(ctx context.Context) ([]platform.KnowledgeBase, error)
	GetKnowledgeBase(ctx context.Context, kbID string) (platform.KnowledgeBase, error)
	ListCalls(ctx context.Context, params platform.ListCallsParams) ([]platform.Call, error)
}

// Storage is the slice of the document store the orchestrator writes through.
// *store.Store satisfies it.
type Storage interface {
	ListAgents(ctx context.Context) ([]store.AgentRecord, error)
	GetAgent(ctx context.Context, id string) (store.AgentRecord, error)
	InsertAgent(ctx context.Context, rec store.AgentRecord) error
	UpdateAgentName(ctx context.Context, id, name string, updatedAt time.Time) error
	DeleteAgent(ctx context.Context, id string) error
	ListKnowledgeBases(ctx context.Context) ([]store.KnowledgeBaseRecord, error)
	InsertKnowledgeBase(ctx context.Context, rec store.KnowledgeBaseRecord) error
	UpdateKnowledgeBaseMeta(ctx context.Context, id, name string, documentsCount int) error
	DeleteKnowledgeBase(ctx context.Context, id string) error
}

// Locker serializes sync operations across replicas. Nil disables locking.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// Orchestrator drives reconciliation and aggregation against the document
// store. Remote fetch failures abort an operation before any local write;
// per-record apply failures are logged, counted, and skipped so one bad
// record never fails the batch.
type Orchestrator struct {
	Registry Registry
	Store    Storage
	Locker   Locker
	Clock    analytics.Clock
	Logger   *log.Logger

	// NewID mints document ids; defaults to random UUIDs.
	NewID func() string
}

func NewOrchestrator(reg Registry, st Storage, locker Locker, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNC] ", log.LstdFlags)
	}
	return &Orchestrator{Registry: reg, Store: st, Locker: locker, Logger: logger, NewID: uuid.NewString}
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) lock(ctx context.Context, key string) (func(), error) {
	if o.Locker == nil {
		return func() {}, nil
	}
	ok, err := o.Locker.Acquire(ctx, key, 2*time.Minute)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	return func() { o.Locker.Release(context.Background(), key) }, nil
}

// AgentSyncResult reports the outcome of one agent sync run.
type AgentSyncResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TotalRemoteAgents int    `json:"total_remote_agents"`
	NewlyImported     int    `json:"newly_imported"`
	AlreadySynced     int    `json:"already_synced"`
	Errors            int    `json:"errors"`
}

// SyncAgents imports remote agents missing locally and refreshes names of
// known ones. Running it again with unchanged remote state is a no-op.
func (o *Orchestrator) SyncAgents(ctx context.Context) (AgentSyncResult, error) {
	release, err := o.lock(ctx, "sync:agents")
	if err != nil {
		return AgentSyncResult{}, err
	}
	defer release()

	remote, err := o.Registry.ListAgents(ctx)
	if err != nil {
		recordSync("sync_agents", "remote_error")
		return AgentSyncResult{}, err
	}
	local, err := o.Store.ListAgents(ctx)
	if err != nil {
		return AgentSyncResult{}, err
	}

	diff := ReconcileAgents(remote, local)
	res := AgentSyncResult{TotalRemoteAgents: len(remote)}

	now := o.Clock.Time()
	for _, ra := range diff.ToImport {
		prompt := o.resolvePrompt(ctx, ra)
		rec := ImportedAgent(o.newID(), ra, prompt, now)
		if err := o.Store.InsertAgent(ctx, rec); err != nil {
			o.Logger.Printf("import agent %s: %v", ra.AgentID, err)
			res.Errors++
			continue
		}
		o.Logger.Printf("imported remote agent %s (%s)", ra.AgentName, ra.AgentID)
		res.NewlyImported++
	}
	for _, upd := range diff.ToUpdate {
		if err := o.Store.UpdateAgentName(ctx, upd.Record.ID, upd.Name, now); err != nil {
			o.Logger.Printf("update agent %s: %v", upd.Record.ID, err)
			res.Errors++
		}
	}

	res.AlreadySynced = len(diff.ToUpdate) + len(diff.Unchanged)
	res.Success = true
	res.Message = syncMessage(res.NewlyImported+res.AlreadySynced, "agents")
	recordSync("sync_agents", "ok")
	return res, nil
}

// resolvePrompt fetches the system prompt from the agent's linked LLM
// resource; unresolvable links get the placeholder.
func (o *Orchestrator) resolvePrompt(ctx context.Context, ra platform.Agent) string {
	if ra.ResponseEngine == nil || ra.ResponseEngine.LLMID == "" {
		return PlaceholderPrompt
	}
	llm, err := o.Registry.GetLLM(ctx, ra.ResponseEngine.LLMID)
	if err != nil || llm.GeneralPrompt == "" {
		return PlaceholderPrompt
	}
	return llm.GeneralPrompt
}

// KnowledgeBaseSyncResult reports the outcome of one knowledge-base sync run.
type KnowledgeBaseSyncResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	TotalRemoteKBs int    `json:"total_remote_kbs"`
	NewlyImported  int    `json:"newly_imported"`
	AlreadySynced  int    `json:"already_synced"`
	Errors         int    `json:"errors"`
}

// SyncKnowledgeBases is the knowledge-base counterpart of SyncAgents.
func (o *Orchestrator) SyncKnowledgeBases(ctx context.Context) (KnowledgeBaseSyncResult, error) {
	release, err := o.lock(ctx, "sync:knowledge_bases")
	if err != nil {
		return KnowledgeBaseSyncResult{}, err
	}
	defer release()

	remote, err := o.Registry.ListKnowledgeBases(ctx)
	if err != nil {
		recordSync("sync_knowledge_bases", "remote_error")
		return KnowledgeBaseSyncResult{}, err
	}
	local, err := o.Store.ListKnowledgeBases(ctx)
	if err != nil {
		return KnowledgeBaseSyncResult{}, err
	}

	counts := map[string]int{}
	for _, rkb := range remote {
		detail, err := o.Registry.GetKnowledgeBase(ctx, rkb.KnowledgeBaseID)
		if err != nil {
			continue // keep the locally stored count
		}
		counts[rkb.KnowledgeBaseID] = len(detail.Sources)
	}

	diff := ReconcileKnowledgeBases(remote, local, counts)
	res := KnowledgeBaseSyncResult{TotalRemoteKBs: len(remote)}

	now := o.Clock.Time()
	for _, rkb := range diff.ToImport {
		rec := store.KnowledgeBaseRecord{
			ID:             o.newID(),
			RemoteKBID:     rkb.KnowledgeBaseID,
			Name:           kbName(rkb),
			Description:    "Imported from cloud",
			Type:           "documents",
			DocumentsCount: counts[rkb.KnowledgeBaseID],
			CreatedAt:      now,
		}
		if err := o.Store.InsertKnowledgeBase(ctx, rec); err != nil {
			o.Logger.Printf("import knowledge base %s: %v", rkb.KnowledgeBaseID, err)
			res.Errors++
			continue
		}
		o.Logger.Printf("imported knowledge base %s (%s)", rec.Name, rkb.KnowledgeBaseID)
		res.NewlyImported++
	}
	for _, upd := range diff.ToUpdate {
		if err := o.Store.UpdateKnowledgeBaseMeta(ctx, upd.Record.ID, upd.Name, upd.DocumentsCount); err != nil {
			o.Logger.Printf("update knowledge base %s: %v", upd.Record.ID, err)
			res.Errors++
		}
	}

	res.AlreadySynced = len(diff.ToUpdate) + len(diff.Unchanged)
	res.Success = true
	res.Message = syncMessage(res.NewlyImported+res.AlreadySynced, "knowledge bases")
	recordSync("sync_knowledge_bases", "ok")
	return res, nil
}

func kbName(rkb platform.KnowledgeBase) string {
	if rkb.KnowledgeBaseName == "" {
		return "Unnamed KB"
	}
	return rkb.KnowledgeBaseName
}

// DeletedAgent describes one purged record in the cleanup response.
type DeletedAgent struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RemoteAgentID string `json:"remote_agent_id,omitempty"`
	Reason        string `json:"reason"`
}

// CleanupResult reports the outcome of a stale-record purge.
type CleanupResult struct {
	Success           bool           `json:"success"`
	DeletedCount      int            `json:"deleted_count"`
	DeletedAgents     []DeletedAgent `json:"deleted_agents"`
	ValidRemoteAgents int            `json:"valid_remote_agents"`
	Errors            int            `json:"errors"`
}

// CleanupStale purges local agents whose remote reference dangles, then the
// age-based pass for records created before the cutoff.
func (o *Orchestrator) CleanupStale(ctx context.Context) (CleanupResult, error) {
	release, err := o.lock(ctx, "sync:cleanup")
	if err != nil {
		return CleanupResult{}, err
	}
	defer release()

	remote, err := o.Registry.ListAgents(ctx)
	if err != nil {
		recordSync("cleanup", "remote_error")
		return CleanupResult{}, err
	}
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, ra := range remote {
		if ra.AgentID != "" {
			remoteIDs[ra.AgentID] = struct{}{}
		}
	}

	local, err := o.Store.ListAgents(ctx)
	if err != nil {
		return CleanupResult{}, err
	}

	res := CleanupResult{DeletedAgents: []DeletedAgent{}, ValidRemoteAgents: len(remoteIDs)}
	for _, stale := range ComputeStaleAgents(remoteIDs, local) {
		if err := o.Store.DeleteAgent(ctx, stale.Record.ID); err != nil {
			o.Logger.Printf("purge agent %s: %v", stale.Record.ID, err)
			res.Errors++
			continue
		}
		o.Logger.Printf("purged agent %s (%s): %s", stale.Record.Name, stale.Record.ID, stale.Reason)
		res.DeletedCount++
		res.DeletedAgents = append(res.DeletedAgents, DeletedAgent{
			ID:            stale.Record.ID,
			Name:          stale.Record.Name,
			RemoteAgentID: stale.Record.RemoteAgentID,
			Reason:        stale.Reason,
		})
	}
	res.Success = true
	recordSync("cleanup", "ok")
	return res, nil
}

// fetchCalls pulls the call log for a cutoff-clamped trailing window, asking
// for more records than the caller will display to tolerate post-filter
// shrinkage, then applies the cutoff filter again to the response.
func (o *Orchestrator) fetchCalls(ctx context.Context, days, limit int, agentID string) ([]platform.Call, error) {
	w := o.Clock.Window(days)
	calls, err := o.Registry.ListCalls(ctx, platform.ListCallsParams{
		Limit:            limit,
		StartTimestampMs: w.StartMs,
		EndTimestampMs:   w.EndMs,
		AgentID:          agentID,
	})
	if err != nil {
		return nil, err
	}
	return analytics.FilterCutoff(calls), nil
}

// Overview computes the analytics summary for a trailing window.
func (o *Orchestrator) Overview(ctx context.Context, days int, agentID string) (analytics.Overview, error) {
	calls, err := o.fetchCalls(ctx, days, 1000, agentID)
	if err != nil {
		return analytics.Overview{}, err
	}
	return analytics.Summarize(calls, days), nil
}

// ChartData is the day-bucketed chart payload.
type ChartData struct {
	CallsData    []analytics.CallsPoint    `json:"calls_data"`
	DurationData []analytics.DurationPoint `json:"duration_data"`
}

// ChartData produces the fixed 7-point daily series.
func (o *Orchestrator) ChartData(ctx context.Context, days int) (ChartData, error) {
	calls, err := o.fetchCalls(ctx, days, 1000, "")
	if err != nil {
		return ChartData{}, err
	}
	callsSeries, durationSeries := analytics.BucketByDay(calls, o.Clock.Time())
	return ChartData{CallsData: callsSeries, DurationData: durationSeries}, nil
}

// RecentCalls returns the newest calls of the trailing month.
func (o *Orchestrator) RecentCalls(ctx context.Context, limit int) ([]analytics.CallSummary, error) {
	calls, err := o.fetchCalls(ctx, 30, 1000, "")
	if err != nil {
		return nil, err
	}
	return analytics.RecentCalls(calls, limit), nil
}

// ConversationEntry is the history projection of one call.
type ConversationEntry struct {
	ID                  string                 `json:"id"`
	Type                string                 `json:"type"`
	AgentID             string                 `json:"agent_id"`
	Status              string                 `json:"status"`
	StartTimestamp      int64                  `json:"start_timestamp"`
	EndTimestamp        int64                  `json:"end_timestamp"`
	DurationMs          int64                  `json:"duration_ms"`
	Transcript          string                 `json:"transcript,omitempty"`
	RecordingURL        string                 `json:"recording_url,omitempty"`
	PublicLogURL        string                 `json:"public_log_url,omitempty"`
	CallType            string                 `json:"call_type,omitempty"`
	FromNumber          string                 `json:"from_number,omitempty"`
	ToNumber            string                 `json:"to_number,omitempty"`
	DisconnectionReason string                 `json:"disconnection_reason,omitempty"`
	CallAnalysis        *platform.CallAnalysis `json:"call_analysis,omitempty"`
	CallCost            *platform.CallCost     `json:"call_cost,omitempty"`
	Metadata            map[string]any         `json:"metadata,omitempty"`
}

// HistoryResult is the call-history response payload.
type HistoryResult struct {
	Conversations []ConversationEntry `json:"conversations"`
	Total         int                 `json:"total"`
	Days          int                 `json:"days"`
}

// History lists calls newest-first. The platform is asked for twice the
// display limit; the filtered set is sorted and only then truncated.
func (o *Orchestrator) History(ctx context.Context, limit, days int, agentID string) (HistoryResult, error) {
	calls, err := o.fetchCalls(ctx, days, limit*2, agentID)
	if err != nil {
		return HistoryResult{}, err
	}
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].Timestamp() > calls[j].Timestamp()
	})
	if limit > 0 && len(calls) > limit {
		calls = calls[:limit]
	}

	conversations := make([]ConversationEntry, 0, len(calls))
	for _, c := range calls {
		conversations = append(conversations, ConversationEntry{
			ID:                  c.CallID,
			Type:                "call",
			AgentID:             c.AgentID,
			Status:              c.CallStatus,
			StartTimestamp:      c.StartTimestamp,
			EndTimestamp:        c.EndTimestamp,
			DurationMs:          c.DurationMs,
			Transcript:          c.Transcript,
			RecordingURL:        c.RecordingURL,
			PublicLogURL:        c.PublicLogURL,
			CallType:            c.CallType,
			FromNumber:          c.FromNumber,
			ToNumber:            c.ToNumber,
			DisconnectionReason: c.DisconnectionReason,
			CallAnalysis:        c.CallAnalysis,
			CallCost:            c.CallCost,
			Metadata:            c.Metadata,
		})
	}
	return HistoryResult{Conversations: conversations, Total: len(conversations), Days: days}, nil
}

// AgentAnalytics is the per-agent summary payload.
type AgentAnalytics struct {
	AgentID         string  `json:"agent_id"`
	RemoteAgentID   string  `json:"remote_agent_id,omitempty"`
	TotalCalls      int     `json:"total_calls"`
	SuccessfulCalls int     `json:"successful_calls"`
	SuccessRate     float64 `json:"success_rate"`
	AverageDuration float64 `json:"average_duration"`
	PeriodDays      int     `json:"period_days"`
}

// AgentOverview resolves a local agent to its remote id and summarizes its
// calls. An agent with no remote linkage reports zeros.
func (o *Orchestrator) AgentOverview(ctx context.Context, localAgentID string, days int) (AgentAnalytics, error) {
	rec, err := o.Store.GetAgent(ctx, localAgentID)
	if err != nil {
		return AgentAnalytics{}, err
	}
	res := AgentAnalytics{AgentID: localAgentID, RemoteAgentID: rec.RemoteAgentID, PeriodDays: days}
	if rec.RemoteAgentID == "" {
		return res, nil
	}
	calls, err := o.fetchCalls(ctx, days, 1000, rec.RemoteAgentID)
	if err != nil {
		return AgentAnalytics{}, err
	}
	ov := analytics.Summarize(calls, days)
	res.TotalCalls = ov.TotalCalls
	res.SuccessfulCalls = ov.SuccessfulCalls
	res.SuccessRate = ov.SuccessRate
	res.AverageDuration = ov.AverageDurationSeconds
	return res, nil
}

func syncMessage(n int, what string) string {
	return fmt.Sprintf("Synced %d %s from cloud", n, what)
}
