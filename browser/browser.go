// Package browser owns the shared headless Chrome instance and hands out one
// tab per crawl job.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"rental-parser/utils"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LaunchError means Chrome could not be started. It is sticky: every later
// NewPage returns the same error until the process restarts.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return "browser: launch failed: " + e.Err.Error() }
func (e *LaunchError) Unwrap() error { return e.Err }

// ErrClosed is returned by NewPage after Close.
var ErrClosed = errors.New("browser: closed")

// Options configures the Chrome process.
type Options struct {
	ChromeBin string
	Headless  bool
	Locale    string
	Timezone  string
}

// Browser is the process-wide automation resource. It launches lazily on the
// first NewPage and lives until Close.
type Browser struct {
	opts   Options
	logger *utils.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	launchErr     error
	closed        bool

	// connected is read without mu so health checks never wait on a launch.
	connected atomic.Bool
}

// New creates an unlaunched Browser.
func New(opts Options, logger *utils.Logger) *Browser {
	if opts.Locale == "" {
		opts.Locale = "ru-RU"
	}
	if opts.Timezone == "" {
		opts.Timezone = "Europe/Moscow"
	}
	return &Browser{opts: opts, logger: logger}
}

// Connected reports whether Chrome has been launched successfully.
func (b *Browser) Connected() bool {
	return b.connected.Load()
}

// NewPage opens a fresh tab on the shared browser. Callers own the page
// exclusively and must Close it. Safe for concurrent use.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	browserCtx, err := b.ensureLaunched()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(1920, 1080),
		emulation.SetTimezoneOverride(b.opts.Timezone),
		emulation.SetLocaleOverride().WithLocale(b.opts.Locale),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("browser: open tab: %w", err)
	}

	return &Page{ctx: tabCtx, cancel: cancel}, nil
}

// ensureLaunched serializes the first launch; opening tabs happens outside mu.
func (b *Browser) ensureLaunched() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if err := b.launchLocked(); err != nil {
		return nil, err
	}
	return b.browserCtx, nil
}

func (b *Browser) launchLocked() error {
	if b.launchErr != nil {
		return b.launchErr
	}
	if b.browserCtx != nil {
		return nil
	}

	chromeBin := b.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	b.logger.Info("[browser] Launching Chrome (binary: %q, headless: %v)", chromeBin, b.opts.Headless)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", b.opts.Locale),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Running with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		b.launchErr = &LaunchError{Err: err}
		b.logger.Error("[browser] %v", b.launchErr)
		return b.launchErr
	}

	b.allocCtx, b.browserCtx = allocCtx, browserCtx
	b.cancelAlloc, b.cancelBrowser = cancelAlloc, cancelBrowser
	b.connected.Store(true)
	return nil
}

// Close tears down every tab and the Chrome process.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.connected.Store(false)
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
		b.logger.Info("[browser] Chrome shut down")
	}
	b.browserCtx, b.allocCtx = nil, nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
