package strapi

import (
	"fmt"
	"strings"
)

// Version selects which CMS major version the site talks to. v4 nests entries
// under data/attributes and prefixes routes with /api; v3 serves flat arrays.
type Version string

const (
	V3 Version = "v3"
	V4 Version = "v4"
)

func ParseVersion(s string) (Version, error) {
	switch Version(strings.ToLower(strings.TrimSpace(s))) {
	case V3:
		return V3, nil
	case V4, "":
		return V4, nil
	default:
		return "", fmt.Errorf("unknown strapi api version %q", s)
	}
}

// CollectionPath returns the route serving a collection type, e.g. "news".
func (v Version) CollectionPath(collection string) string {
	if v == V3 {
		return "/" + collection
	}
	return "/api/" + collection
}

func (v Version) LoginPath() string {
	if v == V3 {
		return "/auth/local"
	}
	return "/api/auth/local"
}
