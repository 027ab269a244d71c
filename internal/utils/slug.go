package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const maxSlugLen = 64

// SlugBase derives the URL-safe base slug for a tenant name.  Names that
// produce nothing sluggable get a generated biz-<time>-<rand> base.
func SlugBase(name string) string {
	s := slug.Make(strings.TrimSpace(name))
	if s == "" {
		s = "biz-" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + RandomBase36(4)
	}
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}

// SlugCandidate returns the i-th candidate for base: base itself for 0,
// then base-1, base-2, ...
func SlugCandidate(base string, i int) string {
	if i == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(i)
}
