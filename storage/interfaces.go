package storage

import (
	"context"
	"encoding/json"

	"rental-parser/models"
)

// Submitter is any backend that accepts a normalized batch for one source.
// upstream.Client and PostgresStore both satisfy it.
type Submitter interface {
	Submit(ctx context.Context, source models.Source, apartments []*models.Apartment) (models.SubmitResult, error)
}

// StatsSource serves the aggregate statistics behind GET /stats.
type StatsSource interface {
	Stats(ctx context.Context) (json.RawMessage, error)
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
