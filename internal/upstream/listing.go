package upstream

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// listingEntry is the slice of the GitHub contents API response the
// proxy cares about.
type listingEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// List fetches the directory manifest at url and returns the ids of the
// dataset files in it: regular files with a .json extension, skipping
// underscore-prefixed internals, with the extension stripped. The result
// is sorted with a locale-aware collator so pagination order is stable
// no matter how the upstream happens to order the manifest.
func (c *Client) List(ctx context.Context, url string) ([]string, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	var entries []listingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", url, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		if !strings.HasSuffix(e.Name, ".json") || strings.HasPrefix(e.Name, "_") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name, ".json"))
	}

	// Collators are not safe for concurrent use, so build one per call.
	collate.New(language.English).SortStrings(ids)
	return ids, nil
}
