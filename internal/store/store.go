package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection. Agents, knowledge bases and flows get
// dedicated tables with the columns queries need; everything else lives in a
// generic per-collection document table keyed by application-assigned UUIDs.
type Store struct {
	DB *sql.DB
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Collections the generic document API accepts. Anything else is rejected to
// keep collection names out of SQL identifiers.
var Collections = []string{
	"test_cases",
	"batch_tests",
	"voice_tests",
	"payments",
	"user_subscriptions",
	"knowledge_sources",
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{DB: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// ---- users (auth) ----

func (s *Store) CreateUser(ctx context.Context, id, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1,$2,$3,NOW())`,
		id, email, passwordHash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id, passwordHash string, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return id, passwordHash, err
}

// ---- agents ----

// AgentRecord is the locally owned agent document. RemoteAgentID is a weak
// back-reference to the voice platform; it may dangle when the remote agent
// is deleted, which is exactly what reconciliation detects.
type AgentRecord struct {
	ID              string         `json:"id"`
	RemoteAgentID   string         `json:"remote_agent_id,omitempty"`
	RemoteLLMID     string         `json:"remote_llm_id,omitempty"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Type            string         `json:"type"`
	Status          string         `json:"status"`
	SystemPrompt    string         `json:"system_prompt"`
	GreetingMessage string         `json:"greeting_message,omitempty"`
	VoiceConfig     map[string]any `json:"voice_config,omitempty"`
	ChatConfig      map[string]any `json:"chat_config,omitempty"`
	Tools           []string       `json:"tools"`
	KnowledgeBases  []string       `json:"knowledge_bases"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (s *Store) InsertAgent(ctx context.Context, rec AgentRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO agents (id, remote_agent_id, name, doc, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, nullable(rec.RemoteAgentID), rec.Name, doc, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *Store) GetAgent(ctx context.Context, id string) (AgentRecord, error) {
	return s.scanAgent(s.DB.QueryRowContext(ctx, `SELECT doc FROM agents WHERE id=$1`, id))
}

// GetAgentByRemoteID looks an agent up by its remote linkage.
func (s *Store) GetAgentByRemoteID(ctx context.Context, remoteAgentID string) (AgentRecord, error) {
	return s.scanAgent(s.DB.QueryRowContext(ctx, `SELECT doc FROM agents WHERE remote_agent_id=$1`, remoteAgentID))
}

func (s *Store) scanAgent(row *sql.Row) (AgentRecord, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AgentRecord{}, ErrNotFound
		}
		return AgentRecord{}, err
	}
	var rec AgentRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return AgentRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT doc FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec AgentRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateAgent replaces the whole document (read-modify-write at the caller).
func (s *Store) UpdateAgent(ctx context.Context, rec AgentRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE agents SET remote_agent_id=$2, name=$3, doc=$4, updated_at=$5 WHERE id=$1`,
		rec.ID, nullable(rec.RemoteAgentID), rec.Name, doc, rec.UpdatedAt)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// UpdateAgentName refreshes only the display name and updated_at; system
// prompt and configs are deliberately left alone so local edits survive sync.
func (s *Store) UpdateAgentName(ctx context.Context, id, name string, updatedAt time.Time) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE agents SET name=$2, updated_at=$3,
		   doc = jsonb_set(jsonb_set(doc, '{name}', to_jsonb($2::text)), '{updated_at}', to_jsonb($3::timestamptz))
		 WHERE id=$1`,
		id, name, updatedAt)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM agents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// ---- knowledge bases ----

// KnowledgeBaseRecord mirrors AgentRecord for knowledge bases; RemoteKBID is
// the same weak-reference shape.
type KnowledgeBaseRecord struct {
	ID             string    `json:"id"`
	RemoteKBID     string    `json:"remote_kb_id,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Type           string    `json:"type"`
	DocumentsCount int       `json:"documents_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Store) InsertKnowledgeBase(ctx context.Context, rec KnowledgeBaseRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_bases (id, remote_kb_id, name, documents_count, doc, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, nullable(rec.RemoteKBID), rec.Name, rec.DocumentsCount, doc, rec.CreatedAt)
	return err
}

func (s *Store) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBaseRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT doc FROM knowledge_bases ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KnowledgeBaseRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec KnowledgeBaseRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (KnowledgeBaseRecord, error) {
	var doc []byte
	err := s.DB.QueryRowContext(ctx, `SELECT doc FROM knowledge_bases WHERE id=$1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeBaseRecord{}, ErrNotFound
	}
	if err != nil {
		return KnowledgeBaseRecord{}, err
	}
	var rec KnowledgeBaseRecord
	err = json.Unmarshal(doc, &rec)
	return rec, err
}

// UpdateKnowledgeBaseMeta refreshes the synced fields: name and source count.
func (s *Store) UpdateKnowledgeBaseMeta(ctx context.Context, id, name string, documentsCount int) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE knowledge_bases SET name=$2, documents_count=$3,
		   doc = jsonb_set(jsonb_set(doc, '{name}', to_jsonb($2::text)), '{documents_count}', to_jsonb($3::int))
		 WHERE id=$1`,
		id, name, documentsCount)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *Store) DeleteKnowledgeBase(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// ---- flows ----

// FlowRecord stores a conversation-flow graph opaquely; nodes and edges are
// forwarded to clients, never interpreted here.
type FlowRecord struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       []any     `json:"nodes"`
	Edges       []any     `json:"edges"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) InsertFlow(ctx context.Context, rec FlowRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO flows (id, agent_id, doc, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`,
		rec.ID, rec.AgentID, doc, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *Store) ListFlows(ctx context.Context, agentID string) ([]FlowRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT doc FROM flows WHERE agent_id=$1 ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FlowRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec FlowRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetFlow(ctx context.Context, agentID, flowID string) (FlowRecord, error) {
	var doc []byte
	err := s.DB.QueryRowContext(ctx, `SELECT doc FROM flows WHERE id=$1 AND agent_id=$2`, flowID, agentID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return FlowRecord{}, ErrNotFound
	}
	if err != nil {
		return FlowRecord{}, err
	}
	var rec FlowRecord
	err = json.Unmarshal(doc, &rec)
	return rec, err
}

func (s *Store) UpdateFlow(ctx context.Context, rec FlowRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE flows SET doc=$3, updated_at=$4 WHERE id=$1 AND agent_id=$2`,
		rec.ID, rec.AgentID, doc, rec.UpdatedAt)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *Store) DeleteFlow(ctx context.Context, agentID, flowID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM flows WHERE id=$1 AND agent_id=$2`, flowID, agentID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// ---- generic documents ----

// Document is a row in a generic collection.
type Document struct {
	ID        string
	Doc       json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

func validCollection(collection string) error {
	for _, c := range Collections {
		if c == collection {
			return nil
		}
	}
	return fmt.Errorf("unknown collection %q", collection)
}

func (s *Store) InsertDoc(ctx context.Context, collection, id string, doc any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc, created_at, updated_at) VALUES ($1,$2,$3,NOW(),NOW())`,
		collection, id, b)
	return err
}

func (s *Store) GetDoc(ctx context.Context, collection, id string, out any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	var b []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (s *Store) ListDocs(ctx context.Context, collection string, limit int) ([]Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, doc, created_at, updated_at FROM documents WHERE collection=$1 ORDER BY created_at DESC LIMIT $2`,
		collection, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, (*[]byte)(&d.Doc), &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpdateDoc(ctx context.Context, collection, id string, doc any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE documents SET doc=$3, updated_at=NOW() WHERE collection=$1 AND id=$2`,
		collection, id, b)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// DeleteKnowledgeSources removes every persisted source document of one
// knowledge base.
func (s *Store) DeleteKnowledgeSources(ctx context.Context, kbID string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE collection='knowledge_sources' AND doc->>'knowledge_base_id'=$1`, kbID)
	return err
}

func (s *Store) DeleteDoc(ctx context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// ---- helpers ----

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
