// Package reconcile classifies an extracted batch against the store's
// already-seen external ids.
package reconcile

import (
	"hnjobs-engine/internal/extract"
	"hnjobs-engine/internal/store"
)

// Classify maps each raw posting to a store record, marking ids absent from
// seen as new. Output order follows input order (the source lists newest
// first and pagination relies on it). When the same external id appears more
// than once in a batch, which happens across adjacent listing pages, only
// the first occurrence survives.
func Classify(raws []extract.RawPosting, seen map[string]bool) []store.Posting {
	out := make([]store.Posting, 0, len(raws))
	inBatch := make(map[string]bool, len(raws))

	for _, raw := range raws {
		if inBatch[raw.ExternalID] {
			continue
		}
		inBatch[raw.ExternalID] = true

		parts := extract.ParseTitle(raw.Title)

		out = append(out, store.Posting{
			ExternalID: raw.ExternalID,
			Title:      parts.Title,
			URL:        raw.URL,
			Company:    parts.Company,
			Location:   parts.Location,
			PostedAt:   raw.PostedAt,
			IsNew:      !seen[raw.ExternalID],
		})
	}
	return out
}
