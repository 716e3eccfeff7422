// Package upstream talks to the persistence service that owns stored
// apartments.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"rental-parser/models"
	"rental-parser/utils"
)

const (
	submitPath = "/parser/update-apartments/"
	statsPath  = "/apartments/stats/"
)

// SubmissionError means a batch never reached the store or was rejected by it.
type SubmissionError struct {
	Source models.Source
	Status int
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream: submit %s: status %d: %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream: submit %s: %v", e.Source, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

type submitRequest struct {
	Source     models.Source       `json:"source"`
	Apartments []*models.Apartment `json:"apartments"`
}

// Client submits batches and proxies stats over HTTP.
type Client struct {
	http   *resty.Client
	logger *utils.Logger
}

// New creates a Client for baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration, logger *utils.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	return &Client{http: client, logger: logger}
}

// Submit posts one source's apartments and returns the store's counts.
func (c *Client) Submit(ctx context.Context, source models.Source, apartments []*models.Apartment) (models.SubmitResult, error) {
	if apartments == nil {
		apartments = []*models.Apartment{}
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(submitRequest{Source: source, Apartments: apartments}).
		Post(submitPath)
	if err != nil {
		return models.SubmitResult{}, &SubmissionError{Source: source, Err: err}
	}
	if res.IsError() {
		return models.SubmitResult{}, &SubmissionError{
			Source: source,
			Status: res.StatusCode(),
			Err:    fmt.Errorf("%s", truncate(res.String(), 200)),
		}
	}

	var out models.SubmitResult
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return models.SubmitResult{}, &SubmissionError{Source: source, Status: res.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Info("[upstream] %s: submitted %d apartments (new: %d, updated: %d)",
		source, len(apartments), out.New, out.Updated)
	return out, nil
}

// Stats fetches the store's aggregate statistics as-is.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(statsPath)
	if err != nil {
		return nil, fmt.Errorf("upstream: stats: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("upstream: stats: status %d", res.StatusCode())
	}
	if !json.Valid(res.Body()) {
		return nil, fmt.Errorf("upstream: stats: response is not JSON")
	}
	return json.RawMessage(res.Body()), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
