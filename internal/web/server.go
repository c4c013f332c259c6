package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/shacrom/mmorpg-news/internal/news"
)

//go:embed templates/*.html
var templateFS embed.FS

// Content is what the pages need from the news service.
type Content interface {
	ListNews(ctx context.Context, page, pageSize int) news.Page
	GetNewsBySlug(ctx context.Context, slug string) *news.Article
	GetFeaturedNews(ctx context.Context, limit int) []news.Article
	FormatPublishedDate(ts string) string
	CoverImageURL(a news.Article) string
}

type Options struct {
	SiteURL       string
	Lang          string
	AllowedHosts  []string
	PageSize      int
	FeaturedLimit int

	// Token runs in front of every page and API route.
	Token mux.MiddlewareFunc
	// Metrics and Webhook are mounted only when set.
	Metrics http.Handler
	Webhook http.Handler
}

type server struct {
	content Content
	opts    Options
	pages   map[string]*template.Template
	logger  *log.Logger
}

type pageData struct {
	Lang      string
	Page      news.Page
	Featured  []news.Article
	PrevPage  int
	NextPage  int
	Article   *news.Article
	Canonical string
}

// NewRouter wires the site pages, the JSON API and the operational endpoints.
func NewRouter(content Content, opts Options, logger *log.Logger) (*mux.Router, error) {
	if logger == nil {
		logger = log.Default()
	}
	if opts.PageSize == 0 {
		opts.PageSize = news.DefaultPageSize
	}
	if opts.FeaturedLimit == 0 {
		opts.FeaturedLimit = news.DefaultFeaturedLimit
	}
	if opts.Lang == "" {
		opts.Lang = "es"
	}

	s := &server{content: content, opts: opts, logger: logger}
	if err := s.parseTemplates(); err != nil {
		return nil, err
	}

	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	if opts.Webhook != nil {
		r.Handle("/webhooks/strapi", opts.Webhook).Methods(http.MethodPost)
	}

	site := r.NewRoute().Subrouter()
	site.Use(allowedHosts(opts.AllowedHosts))
	if opts.Token != nil {
		site.Use(opts.Token)
	}

	site.HandleFunc("/", s.index).Methods(http.MethodGet)
	site.HandleFunc("/news/{slug}", s.article).Methods(http.MethodGet)
	site.HandleFunc("/api/news", s.apiList).Methods(http.MethodGet)
	site.HandleFunc("/api/news/featured", s.apiFeatured).Methods(http.MethodGet)
	site.HandleFunc("/api/news/{slug}", s.apiArticle).Methods(http.MethodGet)

	return r, nil
}

func (s *server) parseTemplates() error {
	funcs := template.FuncMap{
		"published": s.content.FormatPublishedDate,
		"cover":     s.content.CoverImageURL,
	}

	s.pages = make(map[string]*template.Template)
	for _, name := range []string{"index", "article", "notfound"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return err
		}
		s.pages[name] = t
	}
	return nil
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", news.DefaultPage)

	result := s.content.ListNews(r.Context(), page, s.opts.PageSize)
	data := pageData{
		Lang:     s.opts.Lang,
		Page:     result,
		NextPage: nextPage(page, s.opts.PageSize, result),
	}
	if page > 1 {
		data.PrevPage = page - 1
	}
	if page == news.DefaultPage {
		data.Featured = s.content.GetFeaturedNews(r.Context(), s.opts.FeaturedLimit)
	}

	s.render(w, http.StatusOK, "index", data)
}

func (s *server) article(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	a := s.content.GetNewsBySlug(r.Context(), slug)
	if a == nil {
		s.render(w, http.StatusNotFound, "notfound", pageData{Lang: s.opts.Lang})
		return
	}

	data := pageData{Lang: s.opts.Lang, Article: a}
	if s.opts.SiteURL != "" {
		data.Canonical = strings.TrimRight(s.opts.SiteURL, "/") + "/news/" + a.Slug
	}

	s.render(w, http.StatusOK, "article", data)
}

func (s *server) apiList(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", news.DefaultPage)
	pageSize := intParam(r, "pageSize", news.DefaultPageSize)

	writeJSON(w, http.StatusOK, s.content.ListNews(r.Context(), page, pageSize))
}

func (s *server) apiFeatured(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", news.DefaultFeaturedLimit)

	writeJSON(w, http.StatusOK, s.content.GetFeaturedNews(r.Context(), limit))
}

func (s *server) apiArticle(w http.ResponseWriter, r *http.Request) {
	a := s.content.GetNewsBySlug(r.Context(), mux.Vars(r)["slug"])
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *server) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Printf("web: render %s failed: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// intParam reads an integer query parameter. Absent or malformed values fall
// back to def; anything else, including zero and negatives, is kept.
func intParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func nextPage(page, pageSize int, result news.Page) int {
	if p := result.Pagination; p != nil {
		if p.Page < p.PageCount {
			return p.Page + 1
		}
		return 0
	}
	if pageSize > 0 && len(result.Items) == pageSize {
		return page + 1
	}
	return 0
}

// allowedHosts rejects requests for hosts outside the preview allow list.
// An empty list allows every host.
func allowedHosts(hosts []string) mux.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			host := strings.ToLower(r.Host)
			hostname := host
			if h, _, err := net.SplitHostPort(host); err == nil {
				hostname = h
			}

			_, okHost := allowed[host]
			_, okName := allowed[hostname]
			if !okHost && !okName {
				http.Error(w, "host not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
