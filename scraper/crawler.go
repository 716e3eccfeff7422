package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-parser/models"
	"rental-parser/scraper/fields"
	"rental-parser/utils"
)

// Options tunes one source's crawl.
type Options struct {
	MaxPages   int
	PerPageCap int
	Plateau    PlateauPolicy

	NavTimeout       time.Duration
	DetailNavTimeout time.Duration
	NavSettle        time.Duration
	ScrollSettle     time.Duration
	CardDelay        time.Duration
	PageDelay        time.Duration

	// Enrich turns on the detail-page pass for adapters implementing Enricher.
	Enrich bool
}

// Crawler runs one adapter over pages 1..MaxPages, strictly sequentially.
type Crawler struct {
	adapter Adapter
	opts    Options
	logger  *utils.Logger
	now     func() time.Time
}

// NewCrawler creates a Crawler for the given adapter.
func NewCrawler(adapter Adapter, opts Options, logger *utils.Logger) *Crawler {
	return &Crawler{adapter: adapter, opts: opts, logger: logger, now: time.Now}
}

// Source is the marketplace this crawler targets.
func (c *Crawler) Source() models.Source { return c.adapter.Source() }

// Crawl fills job with every card it can read. A failure on the first page
// fails the attempt so it can be retried; failures on later pages only end
// iteration early and keep what was collected.
func (c *Crawler) Crawl(ctx context.Context, sess Session, job *models.CrawlJob) error {
	tag := "[" + string(c.adapter.Source()) + "]"
	c.logger.Info("%s Starting crawl %s: up to %d pages, %d cards/page",
		tag, job.ID, c.opts.MaxPages, c.opts.PerPageCap)

	for page := 1; page <= c.opts.MaxPages; page++ {
		records, cards, err := c.crawlPage(ctx, sess, job, page)
		if err != nil {
			if page == 1 || ctx.Err() != nil {
				return fmt.Errorf("%s page %d: %w", tag, page, err)
			}
			c.logger.Warn("%s Page %d failed, keeping %d records: %v", tag, page, len(job.Records), err)
			break
		}
		if cards == 0 {
			c.logger.Warn("%s Page %d returned 0 cards, stopping", tag, page)
			break
		}

		job.Append(records)
		c.logger.Info("%s Page %d done, collected %d records so far", tag, page, len(job.Records))

		if page < c.opts.MaxPages {
			if err := utils.SleepContext(ctx, c.opts.PageDelay); err != nil {
				return err
			}
		}
	}

	c.logger.Info("%s Crawl complete: %d records, %d skipped", tag, len(job.Records), job.Skipped)
	return nil
}

// crawlPage returns the page's records and how many cards it processed.
func (c *Crawler) crawlPage(ctx context.Context, sess Session, job *models.CrawlJob, page int) ([]*models.RawListing, int, error) {
	tag := "[" + string(c.adapter.Source()) + "]"
	url := c.adapter.PageURL(page)
	c.logger.Info("%s Loading page %d: %s", tag, page, url)

	if err := sess.Navigate(ctx, url, c.opts.NavTimeout); err != nil {
		return nil, 0, err
	}
	if err := sess.Settle(ctx, c.opts.NavSettle); err != nil {
		return nil, 0, err
	}

	selector, count, err := c.locateCards(ctx, sess)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}

	limit := count
	if c.opts.PerPageCap > 0 && limit > c.opts.PerPageCap {
		limit = c.opts.PerPageCap
	}
	cards, err := sess.CardsHTML(ctx, selector, limit)
	if err != nil {
		return nil, 0, err
	}
	c.logger.Debug("%s Page %d: %d cards matched %q, processing %d", tag, page, count, selector, len(cards))

	pacer := utils.NewPacer(c.opts.CardDelay)
	records := make([]*models.RawListing, 0, len(cards))
	for i, html := range cards {
		if err := pacer.Wait(ctx); err != nil {
			return nil, 0, err
		}
		rec, err := c.extract(html)
		if err != nil {
			job.Skipped++
			if errors.Is(err, ErrMissingID) {
				c.logger.Debug("%s Card %d on page %d has no id, skipped", tag, i+1, page)
			} else {
				c.logger.Warn("%s Card %d on page %d skipped: %v", tag, i+1, page, err)
			}
			continue
		}
		records = append(records, rec)
	}

	if enricher, ok := c.adapter.(Enricher); ok && c.opts.Enrich {
		c.enrich(ctx, sess, enricher, records)
	}
	return records, len(cards), nil
}

// locateCards runs the plateau scroll on the primary selector and falls back
// to the alternates in order when it matches nothing.
func (c *Crawler) locateCards(ctx context.Context, sess Session) (string, int, error) {
	selectors := c.adapter.CardSelectors()
	if len(selectors) == 0 {
		return "", 0, errors.New("adapter declares no card selectors")
	}

	count, scrolls, err := ScrollUntilStable(ctx, sess, selectors[0], c.opts.Plateau, c.opts.ScrollSettle)
	if err != nil {
		return "", 0, err
	}
	c.logger.Debug("[%s] Plateau after %d scrolls: %d cards", c.adapter.Source(), scrolls, count)
	if count > 0 {
		return selectors[0], count, nil
	}

	for _, sel := range selectors[1:] {
		n, err := sess.Count(ctx, sel)
		if err != nil {
			return "", 0, err
		}
		if n > 0 {
			return sel, n, nil
		}
	}
	return selectors[0], 0, nil
}

func (c *Crawler) extract(html string) (*models.RawListing, error) {
	card, err := fields.NewCard(html)
	if err != nil {
		return nil, err
	}
	rec, err := c.adapter.ExtractCard(card)
	if err != nil {
		return nil, err
	}
	rec.Source = c.adapter.Source()
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = c.now()
	}
	if broken := card.Broken(); len(broken) > 0 {
		c.logger.Warn("[%s] Card %s: %v", c.adapter.Source(), rec.ExternalID, errors.Join(broken...))
	}
	return rec, nil
}

// enrich visits each record's own page. Card markup was already snapshotted,
// so leaving the list page is safe. Failures keep the list-page record.
func (c *Crawler) enrich(ctx context.Context, sess Session, e Enricher, records []*models.RawListing) {
	tag := "[" + string(c.adapter.Source()) + "]"
	pacer := utils.NewPacer(c.opts.CardDelay)

	for i, rec := range records {
		if rec.URL == "" {
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			return
		}

		detail, err := c.loadDetail(ctx, sess, rec.URL)
		if err != nil {
			c.logger.Warn("%s Detail page failed for %s: %v", tag, rec.URL, err)
			continue
		}
		records[i] = e.Enrich(rec, detail)
		c.logger.Debug("%s Enriched %s", tag, rec.ExternalID)
	}
}

func (c *Crawler) loadDetail(ctx context.Context, sess Session, url string) (*fields.Card, error) {
	if err := sess.Navigate(ctx, url, c.opts.DetailNavTimeout); err != nil {
		return nil, err
	}
	if err := sess.Settle(ctx, c.opts.ScrollSettle); err != nil {
		return nil, err
	}
	html, err := sess.DocumentHTML(ctx)
	if err != nil {
		return nil, err
	}
	return fields.NewCard(html)
}
