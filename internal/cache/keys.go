package cache

import "fmt"

// KeyForURL returns the cache key for a pass-through fetch. The upstream
// URL itself is the key, so aliased routes that resolve to the same file
// share a single entry.
func KeyForURL(url string) string {
	return url
}

// KeyForListing returns the cache key for a collection listing. The
// list-only and full renderings share one upstream directory but differ
// structurally, so the full variant carries a discriminating suffix that
// also pins the effective page. Requests that normalize to the same page
// land on the same key.
func KeyForListing(url string, full bool, limit, offset int) string {
	if !full {
		return url
	}
	return fmt.Sprintf("%s#full;limit=%d;offset=%d", url, limit, offset)
}
