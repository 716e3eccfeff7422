package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"rental-parser/utils"
)

// ErrNavigationTimeout means the document did not become ready in time.
// It is transient and retried at the whole-crawl level.
var ErrNavigationTimeout = errors.New("browser: navigation timeout")

// Page is one tab exclusively owned by a single crawl job.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// actionCtx derives a context bound to the tab that is also cancelled when
// the caller's ctx ends.
func (p *Page) actionCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var actx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		actx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		actx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return actx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url and waits for the body to be ready. It fails with
// ErrNavigationTimeout when timeout elapses first.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	actx, cancel := p.actionCtx(ctx, timeout)
	defer cancel()

	err := chromedp.Run(actx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %v", ErrNavigationTimeout, url, timeout)
		}
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Settle waits a fixed delay so late network requests can finish.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	return utils.SleepContext(ctx, d)
}

// ScrollViewport scrolls the document down by one viewport height.
func (p *Page) ScrollViewport(ctx context.Context) error {
	actx, cancel := p.actionCtx(ctx, 0)
	defer cancel()
	return chromedp.Run(actx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil))
}

// Count returns the number of elements currently matching selector.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	sel, err := jsString(selector)
	if err != nil {
		return 0, err
	}

	actx, cancel := p.actionCtx(ctx, 0)
	defer cancel()

	var n int
	if err := chromedp.Run(actx, chromedp.Evaluate(`document.querySelectorAll(`+sel+`).length`, &n)); err != nil {
		return 0, fmt.Errorf("browser: count %s: %w", selector, err)
	}
	return n, nil
}

// CardsHTML returns the outer HTML of at most limit elements matching selector.
func (p *Page) CardsHTML(ctx context.Context, selector string, limit int) ([]string, error) {
	sel, err := jsString(selector)
	if err != nil {
		return nil, err
	}

	actx, cancel := p.actionCtx(ctx, 0)
	defer cancel()

	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).slice(0, %d).map(function(el) { return el.outerHTML; })`, sel, limit)
	var cards []string
	if err := chromedp.Run(actx, chromedp.Evaluate(script, &cards)); err != nil {
		return nil, fmt.Errorf("browser: extract %s: %w", selector, err)
	}
	return cards, nil
}

// DocumentHTML returns the serialized current document.
func (p *Page) DocumentHTML(ctx context.Context) (string, error) {
	actx, cancel := p.actionCtx(ctx, 0)
	defer cancel()

	var html string
	if err := chromedp.Run(actx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: document html: %w", err)
	}
	return html, nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

func jsString(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
