package news

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/shacrom/mmorpg-news/internal/strapi"
)

const (
	DefaultPage          = 1
	DefaultPageSize      = 10
	DefaultFeaturedLimit = 5

	collection = "news"
)

// CMS is the read side of the CMS client.
type CMS interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Service serves news to the site. Fetch failures never reach callers: they
// are logged and replaced by an empty result.
type Service struct {
	cms     CMS
	version strapi.Version
	baseURL string
	locale  Locale
	logger  *log.Logger
	now     func() time.Time
}

func NewService(cms CMS, version strapi.Version, baseURL string, locale Locale, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		cms:     cms,
		version: version,
		baseURL: baseURL,
		locale:  locale,
		logger:  logger,
		now:     time.Now,
	}
}

// ListNews returns one page of published news, newest first. page and
// pageSize are forwarded to the CMS as given.
func (s *Service) ListNews(ctx context.Context, page, pageSize int) Page {
	articles, pagination, err := s.fetch(ctx, s.listQuery(page, pageSize))
	if err != nil {
		s.logger.Printf("news: list page %d (size %d) failed: %v", page, pageSize, err)
		return emptyPage()
	}

	return Page{
		Items:      capItems(articles, pageSize),
		Pagination: pagination,
	}
}

// GetNewsBySlug returns nil when no article matches or the CMS is unreachable.
func (s *Service) GetNewsBySlug(ctx context.Context, slug string) *Article {
	articles, _, err := s.fetch(ctx, s.slugQuery(slug))
	if err != nil {
		s.logger.Printf("news: fetch by slug %q failed: %v", slug, err)
		return nil
	}

	for i := range articles {
		if articles[i].Slug == slug {
			return &articles[i]
		}
	}
	return nil
}

func (s *Service) GetFeaturedNews(ctx context.Context, limit int) []Article {
	articles, _, err := s.fetch(ctx, s.featuredQuery(limit))
	if err != nil {
		s.logger.Printf("news: fetch featured (limit %d) failed: %v", limit, err)
		return []Article{}
	}
	return capItems(articles, limit)
}

// FormatPublishedDate formats ts against the service clock and locale.
func (s *Service) FormatPublishedDate(ts string) string {
	return FormatPublishedDate(ts, s.now(), s.locale)
}

func (s *Service) CoverImageURL(a Article) string {
	return ResolveCoverImageURL(a, s.baseURL)
}

func (s *Service) fetch(ctx context.Context, q url.Values) ([]Article, *Pagination, error) {
	body, err := s.cms.Get(ctx, s.version.CollectionPath(collection), q)
	if err != nil {
		return nil, nil, err
	}
	return Decode(s.version, body)
}

func (s *Service) listQuery(page, pageSize int) url.Values {
	q := url.Values{}
	if s.version == strapi.V3 {
		q.Set("_sort", "publishedAt:DESC")
		q.Set("_start", strconv.Itoa((page-1)*pageSize))
		q.Set("_limit", strconv.Itoa(pageSize))
		return q
	}

	q.Set("pagination[page]", strconv.Itoa(page))
	q.Set("pagination[pageSize]", strconv.Itoa(pageSize))
	q.Set("sort", "publishedAt:desc")
	q.Set("populate", "cover_image")
	return q
}

func (s *Service) slugQuery(slug string) url.Values {
	q := url.Values{}
	if s.version == strapi.V3 {
		q.Set("slug", slug)
		return q
	}

	q.Set("filters[slug][$eq]", slug)
	q.Set("populate", "cover_image")
	return q
}

func (s *Service) featuredQuery(limit int) url.Values {
	q := url.Values{}
	if s.version == strapi.V3 {
		q.Set("featured", "true")
		q.Set("_sort", "publishedAt:DESC")
		q.Set("_limit", strconv.Itoa(limit))
		return q
	}

	q.Set("filters[featured][$eq]", "true")
	q.Set("pagination[pageSize]", strconv.Itoa(limit))
	q.Set("sort", "publishedAt:desc")
	q.Set("populate", "cover_image")
	return q
}

// capItems trims an over-long CMS answer to max; non-positive max is left to the CMS.
func capItems(articles []Article, max int) []Article {
	if max > 0 && len(articles) > max {
		return articles[:max]
	}
	return articles
}
