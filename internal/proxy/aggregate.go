package proxy

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/raidtools/gamedata-api/internal/registry"
)

// MaxItemFetches caps how many item fetches one full-mode response may
// spend. Edge runtimes allow on the order of 50 outbound subrequests
// per inbound request, and the directory listing itself costs one, so
// the cap stays under that with headroom for cache traffic.
const MaxItemFetches = 45

// ListQuery is the parsed query string of a collection request.
type ListQuery struct {
	Full   bool
	Limit  int
	Offset int
}

// EffectiveLimit clamps the requested limit to MaxItemFetches. Zero,
// negative or absent limits take the full cap.
func (q ListQuery) EffectiveLimit() int {
	if q.Limit > 0 && q.Limit < MaxItemFetches {
		return q.Limit
	}
	return MaxItemFetches
}

// Listing is the list-only collection response: id and link stubs for
// every item, straight from the directory manifest.
type Listing struct {
	Type  string        `json:"type"`
	Count int           `json:"count"`
	Items []ListingItem `json:"items"`
}

// ListingItem points at one item of a collection.
type ListingItem struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Aggregate is the full-mode collection response: one page of complete
// item payloads with pagination links.
type Aggregate struct {
	Type   string            `json:"type"`
	Total  int               `json:"total"`
	Count  int               `json:"count"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
	Items  []json.RawMessage `json:"items"`
	Next   string            `json:"next,omitempty"`
	Prev   string            `json:"prev,omitempty"`
}

func newListing(typeName string, ids []string) *Listing {
	items := make([]ListingItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, ListingItem{ID: id, URL: "/v1/" + typeName + "/" + id})
	}
	return &Listing{Type: typeName, Count: len(items), Items: items}
}

// aggregate fetches one page of items concurrently and assembles the
// full-mode response. ids must already be in canonical sorted order;
// the output preserves that order, not completion order. A failed item
// is dropped from the page and never fails the batch; the whole batch
// fails only when ctx dies before it settles.
func (s *Service) aggregate(ctx context.Context, rt registry.RouteType, ids []string, q ListQuery) (*Aggregate, error) {
	total := len(ids)
	if q.Offset >= len(ids) {
		ids = nil
	} else {
		ids = ids[q.Offset:]
	}
	limit := q.EffectiveLimit()
	if len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]json.RawMessage, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			body, err := s.fetcher.Fetch(ctx, s.fetcher.FileURL(rt.Path+"/"+id))
			if err != nil {
				s.log.Warn().Err(err).
					Str("type", rt.Name).
					Str("id", id).
					Msg("item fetch failed, dropping from page")
				return nil
			}
			results[i] = json.RawMessage(body)
			return nil
		})
	}
	// Item errors stay inside their slot, so Wait only joins the batch.
	_ = g.Wait()

	// Dropped slots are only meaningful when the items themselves
	// failed. A dead context cut the batch short instead, and a short
	// page must never be cached as the real one.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]json.RawMessage, 0, len(results))
	for _, r := range results {
		if r != nil {
			items = append(items, r)
		}
	}

	agg := &Aggregate{
		Type:   rt.Name,
		Total:  total,
		Count:  len(items),
		Offset: q.Offset,
		Limit:  limit,
		Items:  items,
	}
	if q.Offset+limit < total {
		agg.Next = pageLink(rt.Name, limit, q.Offset+limit)
	}
	if q.Offset > 0 {
		prev := q.Offset - limit
		if prev < 0 {
			prev = 0
		}
		agg.Prev = pageLink(rt.Name, limit, prev)
	}
	return agg, nil
}

// pageLink builds a relative continuation link. Clients can recompute
// these themselves; no server-side cursor state is involved.
func pageLink(typeName string, limit, offset int) string {
	return fmt.Sprintf("/v1/%s?full=true&limit=%d&offset=%d", typeName, limit, offset)
}
