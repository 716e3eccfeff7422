package scraper

import (
	"context"
	"fmt"
	"time"
)

// Scroller is the subset of Session the plateau loop needs.
type Scroller interface {
	ScrollViewport(ctx context.Context) error
	Settle(ctx context.Context, d time.Duration) error
	Count(ctx context.Context, selector string) (int, error)
}

// PlateauPolicy stops scrolling once the card count has been observed
// unchanged on Stable consecutive iterations, or after MaxScrolls scrolls.
type PlateauPolicy struct {
	MaxScrolls int
	Stable     int
}

// ScrollUntilStable scrolls one viewport at a time, waiting settle after each
// scroll, and returns the final card count and the number of scrolls done.
// A list that stops growing after k scrolls ends at scroll k+1 when Stable is 2.
func ScrollUntilStable(ctx context.Context, s Scroller, selector string, p PlateauPolicy, settle time.Duration) (count, scrolls int, err error) {
	stable := p.Stable
	if stable < 1 {
		stable = 1
	}

	// The count before any scroll seeds the streak, so an already complete
	// list costs a single confirming scroll.
	last, err := s.Count(ctx, selector)
	if err != nil {
		return 0, 0, fmt.Errorf("count cards: %w", err)
	}
	count, streak := last, 1

	for streak < stable && scrolls < p.MaxScrolls {
		if err := s.ScrollViewport(ctx); err != nil {
			return count, scrolls, fmt.Errorf("scroll: %w", err)
		}
		scrolls++
		if err := s.Settle(ctx, settle); err != nil {
			return count, scrolls, err
		}

		n, err := s.Count(ctx, selector)
		if err != nil {
			return count, scrolls, fmt.Errorf("count cards: %w", err)
		}
		count = n

		if n == last {
			streak++
		} else {
			last, streak = n, 1
		}
	}
	return count, scrolls, nil
}
