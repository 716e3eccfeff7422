package services

import (
	"rental-parser/models"
	"rental-parser/utils"
)

// Dedupe keeps the first record per (source, external_id), preserving
// input order.
func Dedupe(records []*models.RawListing) []*models.RawListing {
	seen := utils.NewKeySet()
	out := make([]*models.RawListing, 0, len(records))
	for _, r := range records {
		if !seen.Add(string(r.Source) + ":" + r.ExternalID) {
			continue
		}
		out = append(out, r)
	}
	return out
}
