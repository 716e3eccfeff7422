// Package pipeline runs one crawl job end to end: crawl with retries,
// deduplicate, normalize, optionally dump raw records, submit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/services"
	"rental-parser/storage"
	"rental-parser/utils"
)

// ErrInvalidSource is returned for names outside cian, avito and yandex.
var ErrInvalidSource = errors.New("invalid source")

// Session is a browser tab owned by one job.
type Session interface {
	scraper.Session
	Close() error
}

// Opener hands out a fresh tab for a job.
type Opener func(ctx context.Context) (Session, error)

// Config wires a Runner.
type Config struct {
	Crawlers      []*scraper.Crawler
	Open          Opener
	Retrier       *utils.Retrier
	Submitter     storage.Submitter
	RawWriter     storage.RawListingWriter
	SubmitTimeout time.Duration
}

// Runner is the core of the control surface.
type Runner struct {
	crawlers      map[models.Source]*scraper.Crawler
	open          Opener
	retrier       *utils.Retrier
	normalizer    *services.Normalizer
	submitter     storage.Submitter
	rawWriter     storage.RawListingWriter
	submitTimeout time.Duration
	logger        *utils.Logger
}

// NewRunner creates a Runner. A nil Retrier makes a single attempt.
func NewRunner(cfg Config, logger *utils.Logger) *Runner {
	crawlers := make(map[models.Source]*scraper.Crawler, len(cfg.Crawlers))
	for _, c := range cfg.Crawlers {
		crawlers[c.Source()] = c
	}
	retrier := cfg.Retrier
	if retrier == nil {
		retrier = &utils.Retrier{MaxAttempts: 1, Logger: logger}
	}
	return &Runner{
		crawlers:      crawlers,
		open:          cfg.Open,
		retrier:       retrier,
		normalizer:    services.NewNormalizer(logger),
		submitter:     cfg.Submitter,
		rawWriter:     cfg.RawWriter,
		submitTimeout: cfg.SubmitTimeout,
		logger:        logger,
	}
}

// RunCrawl never returns nil. A failed run carries Err and the elapsed
// Duration; Found counts normalized apartments even when submission fails.
func (r *Runner) RunCrawl(ctx context.Context, name string) *models.CrawlResult {
	start := time.Now()
	result := &models.CrawlResult{}
	defer func() { result.Duration = time.Since(start) }()

	source, err := models.ParseSource(name)
	if err != nil {
		result.Err = fmt.Errorf("%w: %q", ErrInvalidSource, name)
		return result
	}
	crawler, ok := r.crawlers[source]
	if !ok {
		result.Err = fmt.Errorf("%w: %q is not configured", ErrInvalidSource, name)
		return result
	}
	result.Source = source

	job := models.NewCrawlJob(source)
	result.JobID = job.ID
	tag := "[" + string(source) + "]"

	records, err := r.crawl(ctx, crawler, job)
	if err != nil {
		r.logger.Error("%s Job %s failed after %v: %v", tag, job.ID, job.Elapsed().Round(time.Millisecond), err)
		result.Err = err
		return result
	}
	result.Skipped = job.Skipped

	unique := services.Dedupe(records)
	if dropped := len(records) - len(unique); dropped > 0 {
		r.logger.Info("%s Dropped %d duplicate records", tag, dropped)
	}

	if r.rawWriter != nil {
		if err := r.rawWriter.WriteRaw(unique); err != nil {
			r.logger.Warn("%s Raw CSV write failed: %v", tag, err)
		}
	}

	apartments := r.normalizer.NormalizeAll(unique)
	result.Found = len(apartments)

	sub, err := r.submit(ctx, source, apartments)
	if err != nil {
		r.logger.Error("%s Submission failed, reporting found=%d only: %v", tag, result.Found, err)
	} else {
		result.New, result.Updated = sub.New, sub.Updated
	}

	r.logger.Info("%s Job %s done: found %d, new %d, updated %d, skipped %d in %v",
		tag, job.ID, result.Found, result.New, result.Updated, result.Skipped, job.Elapsed().Round(time.Millisecond))
	return result
}

// crawl opens the job's tab and runs every attempt on it. The tab is
// closed whatever the outcome.
func (r *Runner) crawl(ctx context.Context, crawler *scraper.Crawler, job *models.CrawlJob) ([]*models.RawListing, error) {
	sess, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			r.logger.Warn("[%s] Closing tab: %v", job.Source, err)
		}
	}()

	err = r.retrier.Do(ctx, "crawl "+string(job.Source), func(attempt int) error {
		job.Reset()
		return crawler.Crawl(ctx, sess, job)
	})
	if err != nil {
		return nil, err
	}
	return job.Records, nil
}

func (r *Runner) submit(ctx context.Context, source models.Source, apartments []*models.Apartment) (models.SubmitResult, error) {
	if r.submitter == nil {
		return models.SubmitResult{}, errors.New("no submitter configured")
	}
	if r.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.submitTimeout)
		defer cancel()
	}
	return r.submitter.Submit(ctx, source, apartments)
}
