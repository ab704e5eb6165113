package knowledge

import "testing"

func TestSearchRanksMatches(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	docs := []Doc{
		{ID: "d1", KnowledgeBaseID: "kb1", Title: "Refund policy", Text: "Customers may request a refund within 30 days."},
		{ID: "d2", KnowledgeBaseID: "kb1", Title: "Shipping", Text: "Orders ship within two business days."},
		{ID: "d3", KnowledgeBaseID: "kb2", Title: "Refund exceptions", Text: "Digital goods are not eligible for refund."},
	}
	for _, d := range docs {
		if err := ix.Add(d); err != nil {
			t.Fatalf("Add %s: %v", d.ID, err)
		}
	}

	hits, err := ix.Search("refund", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %+v", len(hits), hits)
	}
	for i, h := range hits {
		if h.Rank != i+1 {
			t.Fatalf("hit %d has rank %d", i, h.Rank)
		}
		if h.DocID == "d2" {
			t.Fatalf("unrelated doc matched: %+v", h)
		}
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := ix.Add(Doc{ID: id, Title: "billing", Text: "billing question"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	hits, err := ix.Search("billing", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestDeleteKnowledgeBaseDropsDocs(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if err := ix.Add(Doc{ID: "d1", KnowledgeBaseID: "kb1", Title: "pricing", Text: "pricing tiers"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Add(Doc{ID: "d2", KnowledgeBaseID: "kb2", Title: "pricing", Text: "pricing tiers"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.DeleteKnowledgeBase("kb1"); err != nil {
		t.Fatalf("DeleteKnowledgeBase: %v", err)
	}
	hits, err := ix.Search("pricing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != "d2" {
		t.Fatalf("unexpected hits after delete: %+v", hits)
	}
}
