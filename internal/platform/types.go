package platform

// Agent is an agent record as the remote platform reports it. The platform
// owns these; from our side they are read-only truth.
type Agent struct {
	AgentID                 string          `json:"agent_id"`
	AgentName               string          `json:"agent_name"`
	VoiceID                 string          `json:"voice_id"`
	Language                string          `json:"language"`
	Responsiveness          float64         `json:"responsiveness"`
	InterruptionSensitivity float64         `json:"interruption_sensitivity"`
	EnableBackchannel       bool            `json:"enable_backchannel"`
	ResponseEngine          *ResponseEngine `json:"response_engine,omitempty"`
	WebhookURL              string          `json:"webhook_url,omitempty"`
	LastModificationTime    int64           `json:"last_modification_timestamp,omitempty"`
}

// ResponseEngine links an agent to its LLM or conversation-flow resource.
type ResponseEngine struct {
	Type               string `json:"type"`
	LLMID              string `json:"llm_id,omitempty"`
	ConversationFlowID string `json:"conversation_flow_id,omitempty"`
}

// LLM is the remote LLM resource an agent's response engine points at.
type LLM struct {
	LLMID         string `json:"llm_id"`
	GeneralPrompt string `json:"general_prompt"`
	Model         string `json:"model,omitempty"`
}

// KnowledgeBase is a remote knowledge-base record.
type KnowledgeBase struct {
	KnowledgeBaseID   string                `json:"knowledge_base_id"`
	KnowledgeBaseName string                `json:"knowledge_base_name"`
	Status            string                `json:"status,omitempty"`
	Sources           []KnowledgeBaseSource `json:"knowledge_base_sources,omitempty"`
}

// KnowledgeBaseSource is a single document inside a remote knowledge base.
type KnowledgeBaseSource struct {
	SourceID string `json:"source_id"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Voice describes a TTS voice offered by the platform.
type Voice struct {
	VoiceID   string `json:"voice_id"`
	VoiceName string `json:"voice_name"`
	Provider  string `json:"provider,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Accent    string `json:"accent,omitempty"`
}

// WebCall is the handle returned when starting a browser call.
type WebCall struct {
	CallID      string `json:"call_id"`
	AccessToken string `json:"access_token"`
	AgentID     string `json:"agent_id"`
}

// Call statuses as reported by the platform.
const (
	CallStatusRegistered = "registered"
	CallStatusOngoing    = "ongoing"
	CallStatusEnded      = "ended"
	CallStatusError      = "error"
)

// Known sentiment buckets; anything else tallies as unknown.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentUnknown  = "unknown"
)

// Call is a call/event record fetched from the platform. Never persisted
// locally; analytics re-fetch on every request.
type Call struct {
	CallID              string         `json:"call_id"`
	AgentID             string         `json:"agent_id"`
	CallStatus          string         `json:"call_status"`
	CallType            string         `json:"call_type,omitempty"`
	StartTimestamp      int64          `json:"start_timestamp"`
	EndTimestamp        int64          `json:"end_timestamp"`
	CreatedTimestamp    int64          `json:"created_timestamp,omitempty"`
	DurationMs          int64          `json:"duration_ms"`
	Transcript          string         `json:"transcript,omitempty"`
	RecordingURL        string         `json:"recording_url,omitempty"`
	PublicLogURL        string         `json:"public_log_url,omitempty"`
	FromNumber          string         `json:"from_number,omitempty"`
	ToNumber            string         `json:"to_number,omitempty"`
	DisconnectionReason string         `json:"disconnection_reason,omitempty"`
	CallAnalysis        *CallAnalysis  `json:"call_analysis,omitempty"`
	CallCost            *CallCost      `json:"call_cost,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// Timestamp returns the effective event time: start timestamp, falling back
// to created timestamp for calls the platform never started.
func (c Call) Timestamp() int64 {
	if c.StartTimestamp != 0 {
		return c.StartTimestamp
	}
	return c.CreatedTimestamp
}

// CallAnalysis is the platform's post-call analysis.
type CallAnalysis struct {
	UserSentiment  string `json:"user_sentiment,omitempty"`
	CallSummary    string `json:"call_summary,omitempty"`
	CallSuccessful bool   `json:"call_successful,omitempty"`
}

// CallCost is the platform's cost breakdown; only the combined figure is used.
type CallCost struct {
	CombinedCost float64 `json:"combined_cost"`
}

// CombinedCost returns the combined cost, zero when the platform omitted it.
func (c Call) CombinedCost() float64 {
	if c.CallCost == nil {
		return 0
	}
	return c.CallCost.CombinedCost
}

// Sentiment normalizes the analysis sentiment into one of the four buckets.
func (c Call) Sentiment() string {
	if c.CallAnalysis == nil {
		return SentimentUnknown
	}
	switch s := c.CallAnalysis.UserSentiment; s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return s
	case "Positive":
		return SentimentPositive
	case "Neutral":
		return SentimentNeutral
	case "Negative":
		return SentimentNegative
	default:
		return SentimentUnknown
	}
}

// ListCallsParams filters the call listing endpoint.
type ListCallsParams struct {
	Limit            int    `json:"limit,omitempty"`
	StartTimestampMs int64  `json:"start_timestamp,omitempty"`
	EndTimestampMs   int64  `json:"end_timestamp,omitempty"`
	AgentID          string `json:"agent_id,omitempty"`
}
