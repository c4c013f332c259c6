package news

import "strings"

// DefaultCoverImageURL is shown for articles without a cover image.
const DefaultCoverImageURL = "https://images.unsplash.com/photo-1578662996442-48f60103fc96?w=800&h=600&fit=crop"

// ResolveCoverImageURL returns an absolute URL for the article's cover image.
// Uploads served by the CMS itself come back as paths and are joined to baseURL.
func ResolveCoverImageURL(a Article, baseURL string) string {
	if a.CoverImage == nil || a.CoverImage.URL == "" {
		return DefaultCoverImageURL
	}

	u := a.CoverImage.URL
	if strings.HasPrefix(u, "http") {
		return u
	}

	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return base + u
}
