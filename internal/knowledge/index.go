// Package knowledge maintains an in-memory BM25 index over knowledge-base
// documents for the search endpoint.
package knowledge

import (
	"sync"

	"github.com/blevesearch/bleve"
)

// Doc is one indexed knowledge document.
type Doc struct {
	ID              string `json:"id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	Text            string `json:"text"`
	URL             string `json:"url,omitempty"`
}

// Hit is one search result.
type Hit struct {
	DocID           string  `json:"doc_id"`
	KnowledgeBaseID string  `json:"knowledge_base_id"`
	Title           string  `json:"title"`
	Snippet         string  `json:"snippet"`
	URL             string  `json:"url,omitempty"`
	Score           float64 `json:"score"`
	Rank            int     `json:"rank"`
}

// Index is a mem-only full-text index. Contents are rebuilt from the store on
// startup and kept current by the knowledge handlers.
type Index struct {
	bleve bleve.Index
	meta  map[string]Doc
	mu    sync.RWMutex
}

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]Doc)}, nil
}

func (ix *Index) Add(doc Doc) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.meta[doc.ID] = doc
	return ix.bleve.Index(doc.ID, doc)
}

func (ix *Index) Delete(docID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.meta, docID)
	return ix.bleve.Delete(docID)
}

// DeleteKnowledgeBase drops every document belonging to a knowledge base.
func (ix *Index) DeleteKnowledgeBase(kbID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, doc := range ix.meta {
		if doc.KnowledgeBaseID != kbID {
			continue
		}
		delete(ix.meta, id)
		if err := ix.bleve.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a BM25 query-string search and returns up to k hits.
func (ix *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	searchReq.Highlight = bleve.NewHighlightWithStyle("html")
	res, err := ix.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Hit
	for i, hit := range res.Hits {
		doc := ix.meta[hit.ID]
		out = append(out, Hit{
			DocID:           hit.ID,
			KnowledgeBaseID: doc.KnowledgeBaseID,
			Title:           doc.Title,
			Snippet:         snippet(doc.Text),
			URL:             doc.URL,
			Score:           hit.Score,
			Rank:            i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "…"
}
