package models

import (
	"time"

	"github.com/google/uuid"
)

// CrawlJob lives for exactly one crawl request and is never persisted.
type CrawlJob struct {
	ID        string
	Source    Source
	StartedAt time.Time

	Records []*RawListing
	Skipped int
}

// NewCrawlJob starts a job for the given source.
func NewCrawlJob(source Source) *CrawlJob {
	return &CrawlJob{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: time.Now(),
	}
}

// Append adds one page worth of records to the accumulator.
func (j *CrawlJob) Append(records []*RawListing) {
	j.Records = append(j.Records, records...)
}

// Reset clears accumulated state so a retried attempt starts from scratch.
func (j *CrawlJob) Reset() {
	j.Records = nil
	j.Skipped = 0
}

// Elapsed is the wall-clock time since the job started.
func (j *CrawlJob) Elapsed() time.Duration {
	return time.Since(j.StartedAt)
}
