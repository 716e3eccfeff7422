package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rental-parser/browser"
	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/scraper/fields"
	"rental-parser/scraper/scrapertest"
	"rental-parser/utils"
)

// countingScroller shows initial cards on load and perScroll more per
// scroll, up to final.
type countingScroller struct {
	initial, perScroll, final int
	scrolls                   int
}

func (s *countingScroller) ScrollViewport(context.Context) error { s.scrolls++; return nil }
func (s *countingScroller) Settle(context.Context, time.Duration) error { return nil }
func (s *countingScroller) Count(context.Context, string) (int, error) {
	return min(s.initial+s.perScroll*s.scrolls, s.final), nil
}

func TestScrollUntilStableStopsOneAfterPlateau(t *testing.T) {
	// 4, 8, 10, 10: stabilizes after k=3 scrolls.
	s := &countingScroller{perScroll: 4, final: 10}
	count, scrolls, err := scraper.ScrollUntilStable(context.Background(), s, ".card",
		scraper.PlateauPolicy{MaxScrolls: 10, Stable: 2}, 0)

	require.NoError(t, err)
	require.Equal(t, 10, count)
	require.Equal(t, 4, scrolls)
}

func TestScrollUntilStableRespectsMaxScrolls(t *testing.T) {
	s := &countingScroller{perScroll: 1, final: 100}
	count, scrolls, err := scraper.ScrollUntilStable(context.Background(), s, ".card",
		scraper.PlateauPolicy{MaxScrolls: 5, Stable: 2}, 0)

	require.NoError(t, err)
	require.Equal(t, 5, scrolls)
	require.Equal(t, 5, count)
	require.Equal(t, 5, s.scrolls)
}

func TestScrollUntilStableEmptyPage(t *testing.T) {
	s := &countingScroller{perScroll: 0, final: 0}
	count, scrolls, err := scraper.ScrollUntilStable(context.Background(), s, ".card",
		scraper.PlateauPolicy{MaxScrolls: 10, Stable: 2}, 0)

	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, 1, scrolls)
}

func TestScrollUntilStableAlreadyLoaded(t *testing.T) {
	s := &countingScroller{initial: 10, perScroll: 100, final: 10}
	count, scrolls, err := scraper.ScrollUntilStable(context.Background(), s, ".card",
		scraper.PlateauPolicy{MaxScrolls: 10, Stable: 2}, 0)

	require.NoError(t, err)
	require.Equal(t, 10, count)
	require.Equal(t, 1, scrolls)
}

func TestScrollUntilStableWithoutScrolling(t *testing.T) {
	s := &countingScroller{initial: 7, perScroll: 1, final: 20}
	count, scrolls, err := scraper.ScrollUntilStable(context.Background(), s, ".card",
		scraper.PlateauPolicy{MaxScrolls: 0, Stable: 2}, 0)

	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.Zero(t, scrolls)
	require.Zero(t, s.scrolls)
}

// fakeAdapter reads <div class="card" data-id="..."><h3>title</h3></div>.
type fakeAdapter struct{}

func (fakeAdapter) Source() models.Source { return models.SourceAvito }
func (fakeAdapter) PageURL(page int) string {
	return fmt.Sprintf("https://example.test/list?p=%d", page)
}
func (fakeAdapter) CardSelectors() []string { return []string{"div.card", "div.alt-card"} }
func (fakeAdapter) ExtractCard(card *fields.Card) (*models.RawListing, error) {
	id := card.String("external_id", fields.Chain{fields.Attr("div", "data-id")})
	if id == "" {
		return nil, scraper.ErrMissingID
	}
	return &models.RawListing{
		ExternalID:    id,
		URL:           "https://example.test/item/" + id,
		Title:         card.String("title", fields.Chain{fields.Text("h3")}),
		MissingFields: card.Missing(),
	}, nil
}

type enrichingAdapter struct{ fakeAdapter }

func (enrichingAdapter) Enrich(rec *models.RawListing, detail *fields.Card) *models.RawListing {
	out := *rec
	if phone := detail.String("phone", fields.Chain{fields.Text("span.phone")}); phone != "" {
		out.ContactPhone = phone
	}
	return &out
}

func cards(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf(`<div class="card" data-id="%s"><h3>Квартира %s</h3></div>`, id, id))
	}
	return out
}

func testOptions() scraper.Options {
	return scraper.Options{
		MaxPages:   5,
		PerPageCap: 100,
		Plateau:    scraper.PlateauPolicy{MaxScrolls: 10, Stable: 2},
		Enrich:     true,
	}
}

func ids(records []*models.RawListing) string {
	var out []string
	for _, r := range records {
		out = append(out, r.ExternalID)
	}
	return strings.Join(out, ",")
}

func TestCrawlStopsAtEmptyPage(t *testing.T) {
	sess := &scrapertest.Session{
		PerScroll: 2,
		Pages: map[string]scrapertest.Page{
			"https://example.test/list?p=1": {Cards: cards("1", "2", "3")},
			"https://example.test/list?p=2": {Cards: cards("4", "")},
		},
	}
	c := scraper.NewCrawler(fakeAdapter{}, testOptions(), utils.NewNopLogger())
	job := models.NewCrawlJob(models.SourceAvito)

	require.NoError(t, c.Crawl(context.Background(), sess, job))
	require.Equal(t, "1,2,3,4", ids(job.Records))
	require.Equal(t, 1, job.Skipped)
	require.Equal(t, models.SourceAvito, job.Records[0].Source)
	require.False(t, job.Records[0].ScrapedAt.IsZero())

	// Page 3 has no cards, so page 4 is never requested.
	require.Equal(t, []string{
		"https://example.test/list?p=1",
		"https://example.test/list?p=2",
		"https://example.test/list?p=3",
	}, sess.Visited())
}

func TestCrawlCapsCardsPerPage(t *testing.T) {
	sess := &scrapertest.Session{Pages: map[string]scrapertest.Page{
		"https://example.test/list?p=1": {Cards: cards("1", "2", "3", "4", "5")},
	}}
	opts := testOptions()
	opts.MaxPages = 1
	opts.PerPageCap = 2

	job := models.NewCrawlJob(models.SourceAvito)
	require.NoError(t, scraper.NewCrawler(fakeAdapter{}, opts, utils.NewNopLogger()).Crawl(context.Background(), sess, job))
	require.Equal(t, "1,2", ids(job.Records))
}

func TestCrawlFallsBackToAlternateSelector(t *testing.T) {
	sess := &scrapertest.Session{Pages: map[string]scrapertest.Page{
		"https://example.test/list?p=1": {Selector: "div.alt-card", Cards: cards("7")},
	}}
	opts := testOptions()
	opts.MaxPages = 1

	job := models.NewCrawlJob(models.SourceAvito)
	require.NoError(t, scraper.NewCrawler(fakeAdapter{}, opts, utils.NewNopLogger()).Crawl(context.Background(), sess, job))
	require.Equal(t, "7", ids(job.Records))
}

func TestCrawlFirstPageNavigationFailsAttempt(t *testing.T) {
	sess := &scrapertest.Session{NavErrors: map[string]error{
		"https://example.test/list?p=1": browser.ErrNavigationTimeout,
	}}
	job := models.NewCrawlJob(models.SourceAvito)
	err := scraper.NewCrawler(fakeAdapter{}, testOptions(), utils.NewNopLogger()).Crawl(context.Background(), sess, job)

	require.ErrorIs(t, err, browser.ErrNavigationTimeout)
}

func TestCrawlLaterPageFailureKeepsRecords(t *testing.T) {
	sess := &scrapertest.Session{
		Pages: map[string]scrapertest.Page{
			"https://example.test/list?p=1": {Cards: cards("1", "2")},
		},
		NavErrors: map[string]error{
			"https://example.test/list?p=2": errors.New("connection reset"),
		},
	}
	job := models.NewCrawlJob(models.SourceAvito)
	err := scraper.NewCrawler(fakeAdapter{}, testOptions(), utils.NewNopLogger()).Crawl(context.Background(), sess, job)

	require.NoError(t, err)
	require.Equal(t, "1,2", ids(job.Records))
}

func TestCrawlEnrichesFromDetailPages(t *testing.T) {
	sess := &scrapertest.Session{
		Pages: map[string]scrapertest.Page{
			"https://example.test/list?p=1": {Cards: cards("1", "2")},
		},
		Details: map[string]string{
			"https://example.test/item/1": `<html><body><span class="phone">+7 900 000-00-01</span></body></html>`,
		},
		NavErrors: map[string]error{
			"https://example.test/item/2": browser.ErrNavigationTimeout,
		},
	}
	opts := testOptions()
	opts.MaxPages = 1

	job := models.NewCrawlJob(models.SourceAvito)
	require.NoError(t, scraper.NewCrawler(enrichingAdapter{}, opts, utils.NewNopLogger()).Crawl(context.Background(), sess, job))

	require.Len(t, job.Records, 2)
	require.Equal(t, "+7 900 000-00-01", job.Records[0].ContactPhone)
	require.Equal(t, "Квартира 1", job.Records[0].Title)
	// A failed detail page keeps the list-page record.
	require.Empty(t, job.Records[1].ContactPhone)
	require.Equal(t, "Квартира 2", job.Records[1].Title)
}

func TestCrawlSkipsEnrichmentWhenDisabled(t *testing.T) {
	sess := &scrapertest.Session{Pages: map[string]scrapertest.Page{
		"https://example.test/list?p=1": {Cards: cards("1")},
	}}
	opts := testOptions()
	opts.MaxPages = 1
	opts.Enrich = false

	job := models.NewCrawlJob(models.SourceAvito)
	require.NoError(t, scraper.NewCrawler(enrichingAdapter{}, opts, utils.NewNopLogger()).Crawl(context.Background(), sess, job))
	require.Equal(t, []string{"https://example.test/list?p=1"}, sess.Visited())
}
