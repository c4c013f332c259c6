package news

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shacrom/mmorpg-news/internal/strapi"
)

// attributes is the field set shared by both encodings. v3 deployments may
// send published_at instead of publishedAt.
type attributes struct {
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	Content        string          `json:"content"`
	SourceURL      string          `json:"source_url"`
	Slug           string          `json:"slug"`
	Category       string          `json:"category"`
	Tags           string          `json:"tags"`
	PublishedAt    string          `json:"publishedAt"`
	PublishedAtV3  string          `json:"published_at"`
	CoverImage     coverImageField `json:"cover_image"`
	SEOTitle       string          `json:"seo_title"`
	SEODescription string          `json:"seo_description"`
	Featured       bool            `json:"featured"`
	Views          int             `json:"views"`
}

type entry struct {
	ID         int
	Attributes attributes
}

type nestedEntry struct {
	ID         int             `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type nestedResponse struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Pagination *Pagination `json:"pagination"`
	} `json:"meta"`
}

type flatEntry struct {
	ID int `json:"id"`
	attributes
}

// Decode maps a CMS collection response in the given encoding to canonical
// articles. The returned pagination is nil when the body carries none.
func Decode(version strapi.Version, body []byte) ([]Article, *Pagination, error) {
	var (
		entries    []entry
		pagination *Pagination
		err        error
	)

	switch version {
	case strapi.V3:
		entries, err = decodeFlat(body)
	default:
		entries, pagination, err = decodeNested(body)
	}
	if err != nil {
		return nil, nil, err
	}

	articles := make([]Article, 0, len(entries))
	for _, e := range entries {
		articles = append(articles, toArticle(e))
	}
	return articles, pagination, nil
}

func decodeNested(body []byte) ([]entry, *Pagination, error) {
	if jsonKind(body) != '{' {
		return nil, nil, fmt.Errorf("%w: nested encoding expects an object", strapi.ErrShapeMismatch)
	}

	var resp nestedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", strapi.ErrShapeMismatch, err)
	}
	if jsonKind(resp.Data) != '[' {
		return nil, nil, fmt.Errorf("%w: nested encoding expects data to be an array", strapi.ErrShapeMismatch)
	}

	var raw []nestedEntry
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", strapi.ErrShapeMismatch, err)
	}

	entries := make([]entry, 0, len(raw))
	for i, r := range raw {
		if jsonKind(r.Attributes) != '{' {
			return nil, nil, fmt.Errorf("%w: entry %d has no attributes", strapi.ErrShapeMismatch, i)
		}
		var attrs attributes
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, nil, fmt.Errorf("%w: entry %d: %v", strapi.ErrShapeMismatch, i, err)
		}
		entries = append(entries, entry{ID: r.ID, Attributes: attrs})
	}

	return entries, resp.Meta.Pagination, nil
}

// decodeFlat treats any well-formed non-array body as an empty result.
func decodeFlat(body []byte) ([]entry, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid json", strapi.ErrShapeMismatch)
	}
	if jsonKind(body) != '[' {
		return []entry{}, nil
	}

	var raw []flatEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", strapi.ErrShapeMismatch, err)
	}

	entries := make([]entry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, entry{ID: r.ID, Attributes: r.attributes})
	}
	return entries, nil
}

func toArticle(e entry) Article {
	a := e.Attributes

	publishedAt := a.PublishedAt
	if publishedAt == "" {
		publishedAt = a.PublishedAtV3
	}

	return Article{
		ID:             e.ID,
		Title:          a.Title,
		Summary:        a.Summary,
		Content:        a.Content,
		SourceURL:      a.SourceURL,
		Slug:           a.Slug,
		Category:       a.Category,
		Tags:           a.Tags,
		PublishedAt:    publishedAt,
		CoverImage:     a.CoverImage.image,
		SEOTitle:       a.SEOTitle,
		SEODescription: a.SEODescription,
		Featured:       a.Featured,
		Views:          a.Views,
	}
}

// jsonKind returns the first significant byte of a JSON value, or 0 for empty input.
func jsonKind(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
