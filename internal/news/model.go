package news

import (
	"bytes"
	"encoding/json"
)

// Article is the canonical news record handed to templates and API callers,
// whatever encoding the CMS used. Its JSON form is the flat CMS encoding.
type Article struct {
	ID             int         `json:"id"`
	Title          string      `json:"title"`
	Summary        string      `json:"summary"`
	Content        string      `json:"content"`
	SourceURL      string      `json:"source_url"`
	Slug           string      `json:"slug"`
	Category       string      `json:"category"`
	Tags           string      `json:"tags"`
	PublishedAt    string      `json:"publishedAt"`
	CoverImage     *CoverImage `json:"cover_image"`
	SEOTitle       string      `json:"seo_title"`
	SEODescription string      `json:"seo_description"`
	Featured       bool        `json:"featured"`
	Views          int         `json:"views"`
}

type CoverImage struct {
	URL             string `json:"url"`
	Name            string `json:"name"`
	AlternativeText string `json:"alternativeText,omitempty"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// Page is one listing result. Pagination is nil when the CMS did not report it.
type Page struct {
	Items      []Article   `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

func emptyPage() Page {
	return Page{Items: []Article{}}
}

// coverImageField accepts both the flat media object and the nested
// {data: {id, attributes: {...}}} relation, preferring the flat url.
type coverImageField struct {
	image *CoverImage
}

func (f *coverImageField) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		f.image = nil
		return nil
	}

	var raw struct {
		CoverImage
		Data *struct {
			Attributes *CoverImage `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch {
	case raw.URL != "":
		img := raw.CoverImage
		f.image = &img
	case raw.Data != nil && raw.Data.Attributes != nil && raw.Data.Attributes.URL != "":
		img := *raw.Data.Attributes
		f.image = &img
	default:
		f.image = nil
	}
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
