// Package scraper drives a marketplace adapter over a browser tab: page
// iteration, plateau scrolling, card extraction and detail enrichment.
package scraper

import (
	"context"
	"errors"
	"time"

	"rental-parser/models"
	"rental-parser/scraper/fields"
)

// ErrMissingID marks a card whose permalink yields no external id. Such
// cards are skipped and counted, never fatal.
var ErrMissingID = errors.New("scraper: card has no external id")

// Session is one exclusively owned browser tab.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Settle(ctx context.Context, d time.Duration) error
	ScrollViewport(ctx context.Context) error
	Count(ctx context.Context, selector string) (int, error)
	CardsHTML(ctx context.Context, selector string, limit int) ([]string, error)
	DocumentHTML(ctx context.Context) (string, error)
}

// Adapter knows one marketplace's URL scheme, card markup and field heuristics.
type Adapter interface {
	Source() models.Source
	// PageURL builds the listing URL for a 1-based page number.
	PageURL(page int) string
	// CardSelectors returns the primary card selector followed by fallbacks.
	CardSelectors() []string
	// ExtractCard maps one card to a record. It fails only with ErrMissingID;
	// absent fields are defaulted and listed in MissingFields.
	ExtractCard(card *fields.Card) (*models.RawListing, error)
}

// Enricher is implemented by adapters that can read a listing's own page.
type Enricher interface {
	// Enrich returns a new record with detail values taking precedence and
	// list values filling the gaps. rec is not modified.
	Enrich(rec *models.RawListing, detail *fields.Card) *models.RawListing
}
