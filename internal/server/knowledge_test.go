package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/voiceline-ai/voiceline/internal/knowledge"
	"github.com/voiceline-ai/voiceline/internal/store"
)

func TestLoadSearchIndexReplaysPersistedSources(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	docs := []knowledge.Doc{
		{ID: "d1", KnowledgeBaseID: "kb1", Title: "Refund policy", Text: "Refunds are issued within 14 days of purchase."},
		{ID: "d2", KnowledgeBaseID: "kb2", Title: "Shipping", Text: "Orders ship within two business days."},
	}
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "doc", "created_at", "updated_at"})
	for _, d := range docs {
		b, _ := json.Marshal(d)
		rows.AddRow(d.ID, b, now, now)
	}
	mock.ExpectQuery(`SELECT id, doc, created_at, updated_at FROM documents WHERE collection=\$1`).
		WithArgs("knowledge_sources", 10000).
		WillReturnRows(rows)

	ix, err := knowledge.NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	n, err := LoadSearchIndex(context.Background(), &store.Store{DB: db}, ix)
	if err != nil {
		t.Fatalf("LoadSearchIndex: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 documents replayed, got %d", n)
	}

	hits, err := ix.Search("refund", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].DocID != "d1" || hits[0].KnowledgeBaseID != "kb1" {
		t.Fatalf("rebuilt index missed the persisted source: %+v", hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
