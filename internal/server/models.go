package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// CreateAgentRequest is the local agent create/update payload.
type CreateAgentRequest struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Type           string         `json:"type"`
	SystemPrompt   string         `json:"system_prompt"`
	Greeting       string         `json:"greeting"`
	Language       string         `json:"language"`
	VoiceConfig    map[string]any `json:"voice_config"`
	ChatConfig     map[string]any `json:"chat_config"`
	Tools          []string       `json:"tools"`
	KnowledgeBases []string       `json:"knowledge_bases"`
}

// CreateKnowledgeBaseRequest is the local knowledge-base create payload.
// Texts are indexed directly; URLs are fetched and their main content
// extracted before indexing.
type CreateKnowledgeBaseRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Texts       []TextSource `json:"texts"`
	URLs        []string     `json:"urls"`
}

// TextSource is one inline text document.
type TextSource struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// FlowRequest is the create/update payload for a conversation flow. Nodes and
// edges are stored and returned as-is.
type FlowRequest struct {
	Name  string `json:"name"`
	Nodes []any  `json:"nodes"`
	Edges []any  `json:"edges"`
}

// ChatTurn is one prior message of a chat conversation, as sent by the
// client. Any role other than assistant or agent is treated as user.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the conversation payload for chatting with an agent.
type ChatRequest struct {
	AgentID   string     `json:"agent_id"`
	Message   string     `json:"message"`
	History   []ChatTurn `json:"history"`
	SessionID string     `json:"session_id"`
}

// ChatResponse carries the agent's reply and the session id, generated when
// the client did not supply one.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// TestChatRequest is a direct completion probe without an agent.
type TestChatRequest struct {
	Message string `json:"message"`
}

// WebCallRequest carries optional metadata for a browser call session.
type WebCallRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// TestCaseRequest is the create/update payload for an eval test case.
type TestCaseRequest struct {
	Name             string   `json:"name"`
	AgentID          string   `json:"agent_id"`
	UserPrompt       string   `json:"user_prompt"`
	ExpectedBehavior string   `json:"expected_behavior"`
	SuccessCriteria  []string `json:"success_criteria"`
}

// BatchTestRequest launches a batch of test cases against an agent.
type BatchTestRequest struct {
	AgentID     string   `json:"agent_id"`
	TestCaseIDs []string `json:"test_case_ids"`
}

// CheckoutRequest is the hosted checkout payload.
type CheckoutRequest struct {
	ProductID string         `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Metadata  map[string]any `json:"metadata"`
	ReturnURL string         `json:"return_url"`
}

// CheckoutResponse returns the hosted checkout URL.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// VoiceTokenRequest asks for a media room access token.
type VoiceTokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// VoiceTokenResponse carries the signed media token.
type VoiceTokenResponse struct {
	Token string `json:"token"`
	Room  string `json:"room"`
}

// SearchResponse wraps knowledge search hits.
type SearchResponse struct {
	Query   string `json:"query"`
	Results any    `json:"results"`
	Total   int    `json:"total"`
}
