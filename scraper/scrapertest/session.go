// Package scrapertest provides an in-memory browser tab for exercising
// crawlers and adapters against HTML fixtures.
package scrapertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("scrapertest: session closed")

// Page is a fixture listing page.
type Page struct {
	// Selector is the only card selector that matches; empty matches any.
	Selector string
	Cards    []string
}

// Session serves fixture pages. Cards are revealed PerScroll at a time, the
// first batch on load, to simulate infinite scroll. PerScroll of zero shows
// everything at once.
type Session struct {
	Pages     map[string]Page
	Details   map[string]string
	NavErrors map[string]error
	PerScroll int

	mu       sync.Mutex
	current  string
	revealed int
	visited  []string
	scrolls  int
	closed   bool
}

// Navigate records the visit and resets the scroll state.
func (s *Session) Navigate(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.visited = append(s.visited, url)
	if err := s.NavErrors[url]; err != nil {
		return err
	}
	s.current = url
	s.revealed = s.batch(0)
	return nil
}

func (s *Session) batch(have int) int {
	total := len(s.Pages[s.current].Cards)
	if s.PerScroll <= 0 {
		return total
	}
	if n := have + s.PerScroll; n < total {
		return n
	}
	return total
}

// Settle returns immediately.
func (s *Session) Settle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// ScrollViewport reveals the next batch of cards.
func (s *Session) ScrollViewport(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.scrolls++
	s.revealed = s.batch(s.revealed)
	return ctx.Err()
}

func (s *Session) matches(selector string) bool {
	p, ok := s.Pages[s.current]
	return ok && (p.Selector == "" || p.Selector == selector)
}

// Count returns how many cards are revealed for selector.
func (s *Session) Count(_ context.Context, selector string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if !s.matches(selector) {
		return 0, nil
	}
	return s.revealed, nil
}

// CardsHTML returns at most limit revealed cards.
func (s *Session) CardsHTML(_ context.Context, selector string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if !s.matches(selector) {
		return nil, nil
	}
	n := s.revealed
	if limit < n {
		n = limit
	}
	return append([]string(nil), s.Pages[s.current].Cards[:n]...), nil
}

// DocumentHTML returns the detail fixture for the current URL, or the
// revealed cards of a listing page.
func (s *Session) DocumentHTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	if html, ok := s.Details[s.current]; ok {
		return html, nil
	}
	cards := s.Pages[s.current].Cards
	return "<html><body>" + strings.Join(cards[:s.revealed], "") + "</body></html>", nil
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Visited returns every URL passed to Navigate, in order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Scrolls returns the total number of viewport scrolls.
func (s *Session) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}
