package pipeline

import (
	"context"
	"fmt"
	"time"

	"notion-post-bot/notion"
	"notion-post-bot/selector"
)

// NotionAPI is the part of the Notion client a run needs.
type NotionAPI interface {
	QueryDatabase(ctx context.Context, q notion.Query) ([]notion.Page, error)
	PageContent(ctx context.Context, pageID string) (string, error)
}

// NotionSource serves candidates from a Notion database.
type NotionSource struct {
	api           NotionAPI
	query         notion.Query
	titleProperty string
}

// NewNotionSource creates a source for the pages matching query. The query's
// Since is replaced on every fetch.
func NewNotionSource(api NotionAPI, query notion.Query, titleProperty string) *NotionSource {
	return &NotionSource{api: api, query: query, titleProperty: titleProperty}
}

// Candidates returns the flagged notes created on or after since.
func (s *NotionSource) Candidates(ctx context.Context, since time.Time) ([]selector.Candidate, error) {
	q := s.query
	q.Since = since

	pages, err := s.api.QueryDatabase(ctx, q)
	if err != nil {
		return nil, err
	}
	notes, err := notion.ToNotes(pages, s.titleProperty)
	if err != nil {
		return nil, fmt.Errorf("map pages: %w", err)
	}

	candidates := make([]selector.Candidate, len(notes))
	for i, n := range notes {
		candidates[i] = selector.Candidate{ID: n.ID, Title: n.Title, CreatedTime: n.CreatedTime}
	}
	return candidates, nil
}

// Content exports the note's text.
func (s *NotionSource) Content(ctx context.Context, id string) (string, error) {
	return s.api.PageContent(ctx, id)
}
