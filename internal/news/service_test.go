package news

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/shacrom/mmorpg-news/internal/strapi"
)

type mockCMS struct {
	mock.Mock
}

func (m *mockCMS) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	args := m.Called(ctx, path, query)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func queryWith(kv ...string) any {
	return mock.MatchedBy(func(q url.Values) bool {
		for i := 0; i+1 < len(kv); i += 2 {
			if q.Get(kv[i]) != kv[i+1] {
				return false
			}
		}
		return true
	})
}

type ServiceSuite struct {
	suite.Suite

	cms    *mockCMS
	logBuf *bytes.Buffer
	logger *log.Logger

	svc *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.cms = &mockCMS{}
	s.logBuf = &bytes.Buffer{}
	s.logger = log.New(s.logBuf, "", 0)
	s.svc = NewService(s.cms, strapi.V4, "http://strapi-zona:1338", Spanish, s.logger)
}

func (s *ServiceSuite) TestListNews_BuildsV4QueryAndReturnsPagination() {
	s.cms.
		On("Get", mock.Anything, "/api/news", queryWith(
			"pagination[page]", "2",
			"pagination[pageSize]", "10",
			"sort", "publishedAt:desc",
			"populate", "cover_image",
		)).
		Return([]byte(nestedBody), nil).
		Once()

	page := s.svc.ListNews(context.Background(), 2, 10)

	s.Len(page.Items, 2)
	s.Require().NotNil(page.Pagination)
	s.Equal(25, page.Pagination.Total)
	s.cms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListNews_BuildsV3Query() {
	s.svc = NewService(s.cms, strapi.V3, "http://localhost:1337", Spanish, s.logger)

	s.cms.
		On("Get", mock.Anything, "/news", queryWith(
			"_sort", "publishedAt:DESC",
			"_start", "20",
			"_limit", "10",
		)).
		Return([]byte(flatBody), nil).
		Once()

	page := s.svc.ListNews(context.Background(), 3, 10)

	s.Len(page.Items, 2)
	s.Nil(page.Pagination)
	s.cms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListNews_PassesNonPositiveValuesThrough() {
	s.cms.
		On("Get", mock.Anything, "/api/news", queryWith(
			"pagination[page]", "-1",
			"pagination[pageSize]", "0",
		)).
		Return([]byte(`{"data":[],"meta":{}}`), nil).
		Once()

	page := s.svc.ListNews(context.Background(), -1, 0)

	s.Empty(page.Items)
	s.cms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListNews_NeverExceedsPageSize() {
	s.cms.
		On("Get", mock.Anything, "/api/news", mock.Anything).
		Return([]byte(nestedBody), nil)

	for size := 1; size <= 3; size++ {
		page := s.svc.ListNews(context.Background(), 1, size)
		s.LessOrEqual(len(page.Items), size)
	}
}

func (s *ServiceSuite) TestListNews_FailSoft() {
	failures := map[string]error{
		"transport": &strapi.TransportError{Op: "GET /api/news", Err: errors.New("connection refused")},
		"status":    &strapi.UpstreamStatusError{Op: "GET /api/news", StatusCode: http.StatusBadGateway},
	}

	for name, failure := range failures {
		s.Run(name, func() {
			s.SetupTest()
			s.cms.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, failure).Once()

			page := s.svc.ListNews(context.Background(), 1, 10)

			s.NotNil(page.Items)
			s.Empty(page.Items)
			s.Nil(page.Pagination)
			s.Contains(s.logBuf.String(), "news: list page 1 (size 10) failed")
		})
	}
}

func (s *ServiceSuite) TestListNews_ShapeMismatchIsEmpty() {
	s.cms.
		On("Get", mock.Anything, "/api/news", mock.Anything).
		Return([]byte(`[{"id":1}]`), nil).
		Once()

	page := s.svc.ListNews(context.Background(), 1, 10)

	s.Empty(page.Items)
	s.Contains(s.logBuf.String(), "unexpected response shape")
}

func (s *ServiceSuite) TestGetNewsBySlug_Found() {
	s.cms.
		On("Get", mock.Anything, "/api/news", queryWith(
			"filters[slug][$eq]", "no-image",
			"populate", "cover_image",
		)).
		Return([]byte(nestedBody), nil).
		Once()

	got := s.svc.GetNewsBySlug(context.Background(), "no-image")

	s.Require().NotNil(got)
	s.Equal("no-image", got.Slug)
	s.Equal(8, got.ID)
}

func (s *ServiceSuite) TestGetNewsBySlug_V3Query() {
	s.svc = NewService(s.cms, strapi.V3, "http://localhost:1337", Spanish, s.logger)

	s.cms.
		On("Get", mock.Anything, "/news", queryWith("slug", "patch-2-4-notes")).
		Return([]byte(flatBody), nil).
		Once()

	got := s.svc.GetNewsBySlug(context.Background(), "patch-2-4-notes")

	s.Require().NotNil(got)
	s.Equal("patch-2-4-notes", got.Slug)
}

func (s *ServiceSuite) TestGetNewsBySlug_NotFound() {
	s.cms.
		On("Get", mock.Anything, "/api/news", mock.Anything).
		Return([]byte(`{"data":[],"meta":{"pagination":{"page":1,"pageSize":25,"pageCount":0,"total":0}}}`), nil).
		Once()

	s.Nil(s.svc.GetNewsBySlug(context.Background(), "missing"))
}

func (s *ServiceSuite) TestGetNewsBySlug_FailSoft() {
	s.cms.
		On("Get", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &strapi.TransportError{Op: "GET /api/news", Err: context.DeadlineExceeded}).
		Once()

	s.Nil(s.svc.GetNewsBySlug(context.Background(), "patch-2-4-notes"))
	s.Contains(s.logBuf.String(), `news: fetch by slug "patch-2-4-notes" failed`)
}

func (s *ServiceSuite) TestGetFeaturedNews_BuildsQueryAndCaps() {
	s.cms.
		On("Get", mock.Anything, "/api/news", queryWith(
			"filters[featured][$eq]", "true",
			"pagination[pageSize]", "1",
			"sort", "publishedAt:desc",
			"populate", "cover_image",
		)).
		Return([]byte(nestedBody), nil).
		Once()

	got := s.svc.GetFeaturedNews(context.Background(), 1)

	s.Len(got, 1)
	s.Equal("patch-2-4-notes", got[0].Slug)
}

func (s *ServiceSuite) TestGetFeaturedNews_V3Query() {
	s.svc = NewService(s.cms, strapi.V3, "http://localhost:1337", Spanish, s.logger)

	s.cms.
		On("Get", mock.Anything, "/news", queryWith(
			"featured", "true",
			"_sort", "publishedAt:DESC",
			"_limit", "5",
		)).
		Return([]byte(flatBody), nil).
		Once()

	s.Len(s.svc.GetFeaturedNews(context.Background(), DefaultFeaturedLimit), 2)
}

func (s *ServiceSuite) TestGetFeaturedNews_FailSoft() {
	s.cms.
		On("Get", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &strapi.UpstreamStatusError{Op: "GET /api/news", StatusCode: http.StatusInternalServerError}).
		Once()

	got := s.svc.GetFeaturedNews(context.Background(), 5)

	s.NotNil(got)
	s.Empty(got)
	s.Contains(s.logBuf.String(), "news: fetch featured (limit 5) failed")
}

func (s *ServiceSuite) TestFormatPublishedDate_UsesInjectedClock() {
	s.svc.now = func() time.Time { return time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC) }

	s.Equal("Hace 2 horas", s.svc.FormatPublishedDate("2024-03-05T10:00:00.000Z"))
}

func (s *ServiceSuite) TestCoverImageURL_JoinsBaseURL() {
	a := Article{CoverImage: &CoverImage{URL: "/uploads/patch.jpg"}}
	s.Equal("http://strapi-zona:1338/uploads/patch.jpg", s.svc.CoverImageURL(a))
}

// TestService_AgainstRealClient runs the service over HTTP, failing the CMS mid-way.
func (s *ServiceSuite) TestService_AgainstRealClient() {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(nestedBody))
	}))
	defer srv.Close()

	client := strapi.NewClient(srv.URL, strapi.V4, srv.Client(), nil)
	svc := NewService(client, strapi.V4, srv.URL, Spanish, s.logger)

	s.Len(svc.ListNews(context.Background(), DefaultPage, DefaultPageSize).Items, 2)
	s.NotNil(svc.GetNewsBySlug(context.Background(), "patch-2-4-notes"))

	fail.Store(true)
	s.Empty(svc.ListNews(context.Background(), DefaultPage, DefaultPageSize).Items)
	s.Nil(svc.GetNewsBySlug(context.Background(), "patch-2-4-notes"))
	s.Empty(svc.GetFeaturedNews(context.Background(), DefaultFeaturedLimit))
	s.Contains(s.logBuf.String(), "unexpected status 503")
}
