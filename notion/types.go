package notion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Page is a database row as returned by a query.
type Page struct {
	ID          string              `json:"id"`
	CreatedTime string              `json:"created_time"`
	URL         string              `json:"url"`
	Properties  map[string]Property `json:"properties"`
}

// Property is a page property. Only title properties are read.
type Property struct {
	Type  string     `json:"type"`
	Title []RichText `json:"title"`
}

// RichText is one styled run of text.
type RichText struct {
	PlainText   string      `json:"plain_text"`
	Href        string      `json:"href"`
	Annotations Annotations `json:"annotations"`
}

// Annotations holds inline styling.
type Annotations struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Strikethrough bool `json:"strikethrough"`
	Code          bool `json:"code"`
}

// Note is the selection-relevant view of a page.
type Note struct {
	ID          string
	Title       string
	CreatedTime time.Time
}

// ToNotes maps query results to notes, reading the title from titleProperty.
// Pages with a missing title get an empty one; a malformed timestamp is an error.
func ToNotes(pages []Page, titleProperty string) ([]Note, error) {
	notes := make([]Note, 0, len(pages))
	for _, p := range pages {
		created, err := time.Parse(time.RFC3339, p.CreatedTime)
		if err != nil {
			return nil, fmt.Errorf("page %s: parse created_time %q: %w", p.ID, p.CreatedTime, err)
		}
		notes = append(notes, Note{
			ID:          p.ID,
			Title:       p.Title(titleProperty),
			CreatedTime: created,
		})
	}
	return notes, nil
}

// Title returns the plain text of the named title property. When name is
// empty or absent, the first property of type title is used.
func (p Page) Title(name string) string {
	prop, ok := p.Properties[name]
	if !ok || prop.Type != "title" {
		for _, candidate := range p.Properties {
			if candidate.Type == "title" {
				prop, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return ""
	}
	return plainText(prop.Title)
}

func plainText(runs []RichText) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.PlainText)
	}
	return sb.String()
}

// Block is one content block of a page.
type Block struct {
	ID          string
	Type        string
	HasChildren bool
	Content     BlockContent
	Children    []Block
}

// BlockContent is the union of the per-type payloads this package renders.
type BlockContent struct {
	RichText   []RichText `json:"rich_text"`
	Checked    bool       `json:"checked"`
	Language   string     `json:"language"`
	URL        string     `json:"url"`
	Caption    []RichText `json:"caption"`
	Title      string     `json:"title"`
	Expression string     `json:"expression"`
}

// UnmarshalJSON decodes the payload stored under the block's type key.
func (b *Block) UnmarshalJSON(data []byte) error {
	var head struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.ID, b.Type, b.HasChildren = head.ID, head.Type, head.HasChildren

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if payload, ok := raw[head.Type]; ok && len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &b.Content); err != nil {
			return fmt.Errorf("block %s: decode %s: %w", head.ID, head.Type, err)
		}
	}
	return nil
}

// API wire types

type queryRequest struct {
	Filter      filter     `json:"filter"`
	Sorts       []sortSpec `json:"sorts,omitempty"`
	StartCursor string     `json:"start_cursor,omitempty"`
	PageSize    int        `json:"page_size,omitempty"`
}

type filter struct {
	And []condition `json:"and"`
}

type condition struct {
	Property    string             `json:"property,omitempty"`
	Timestamp   string             `json:"timestamp,omitempty"`
	Checkbox    *checkboxCondition `json:"checkbox,omitempty"`
	CreatedTime *dateCondition     `json:"created_time,omitempty"`
}

type checkboxCondition struct {
	Equals bool `json:"equals"`
}

type dateCondition struct {
	OnOrAfter string `json:"on_or_after"`
}

type sortSpec struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type queryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

type childrenResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}
