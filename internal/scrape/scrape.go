// Package scrape fetches a URL and extracts its main text content for
// knowledge-base ingestion.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Result is the extracted content of one page.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Byline string `json:"byline"`
	Text   string `json:"text"`
	Status int    `json:"status"`
}

// Fetcher downloads pages over plain HTTP and runs readability extraction.
type Fetcher struct {
	UserAgent string
	DefaultTO time.Duration
	MaxChars  int
	http      *http.Client
}

func NewFetcher(defaultTO time.Duration, maxChars int, userAgent string) *Fetcher {
	if defaultTO <= 0 {
		defaultTO = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &Fetcher{
		UserAgent: userAgent,
		DefaultTO: defaultTO,
		MaxChars:  maxChars,
		http:      &http.Client{Timeout: defaultTO},
	}
}

// Exec fetches link and extracts main content via readability. Parse failures
// return status 200 with empty text; network failures return an error.
func (f *Fetcher) Exec(ctx context.Context, link string) (Result, error) {
	if strings.TrimSpace(link) == "" {
		return Result{}, errors.New("invalid url")
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, fmt.Errorf("invalid url: %s", link)
	}

	ctx, cancel := context.WithTimeout(ctx, f.DefaultTO)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Result{}, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{URL: link, Status: resp.StatusCode}, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, err
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		return Result{URL: link, Status: resp.StatusCode}, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return Result{
		URL:    link,
		Title:  strings.TrimSpace(article.Title),
		Byline: strings.TrimSpace(article.Byline),
		Text:   text,
		Status: resp.StatusCode,
	}, nil
}
