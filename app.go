package main

import (
	"context"
	"fmt"

	"rental-parser/browser"
	"rental-parser/config"
	"rental-parser/models"
	"rental-parser/pipeline"
	"rental-parser/scraper"
	"rental-parser/scraper/avito"
	"rental-parser/scraper/cian"
	"rental-parser/scraper/yandex"
	"rental-parser/storage"
	"rental-parser/upstream"
	"rental-parser/utils"
)

// app holds the process-wide resources built from config.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	browser *browser.Browser
	runner  *pipeline.Runner
	stats   storage.StatsSource

	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := utils.NewLogger(cfg.LogLevel)

	a := &app{cfg: cfg, logger: logger}

	var submitter storage.Submitter
	if cfg.PostgresDSN != "" {
		store, err := storage.NewPostgresStore(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		submitter, a.stats = store, store
		logger.Info("[app] Storing apartments in PostgreSQL")
	} else {
		client := upstream.New(cfg.UpstreamURL, cfg.SubmitTimeout, logger)
		submitter, a.stats = client, client
		logger.Info("[app] Submitting apartments to %s", cfg.UpstreamURL)
	}

	var rawWriter storage.RawListingWriter
	if cfg.RawCSVPath != "" {
		w, err := storage.NewCSVWriter(cfg.RawCSVPath)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, w.Close)
		rawWriter = w
		logger.Info("[app] Raw listings will be saved to %s", cfg.RawCSVPath)
	}

	a.browser = browser.New(browser.Options{ChromeBin: cfg.ChromeBin, Headless: cfg.Headless}, logger)

	a.runner = pipeline.NewRunner(pipeline.Config{
		Crawlers: a.crawlers(),
		Open: func(ctx context.Context) (pipeline.Session, error) {
			page, err := a.browser.NewPage(ctx)
			if err != nil {
				return nil, err
			}
			return page, nil
		},
		Retrier: &utils.Retrier{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryBaseDelay,
			Logger:      logger,
		},
		Submitter:     submitter,
		RawWriter:     rawWriter,
		SubmitTimeout: cfg.SubmitTimeout,
	}, logger)

	return a, nil
}

func (a *app) crawlers() []*scraper.Crawler {
	adapters := map[models.Source]scraper.Adapter{
		models.SourceCian:   cian.New(a.cfg.Sources[models.SourceCian].BaseURL),
		models.SourceAvito:  avito.New(a.cfg.Sources[models.SourceAvito].BaseURL),
		models.SourceYandex: yandex.New(a.cfg.Sources[models.SourceYandex].BaseURL),
	}

	crawlers := make([]*scraper.Crawler, 0, len(models.Sources))
	for _, src := range models.Sources {
		sc := a.cfg.Sources[src]
		crawlers = append(crawlers, scraper.NewCrawler(adapters[src], scraper.Options{
			MaxPages:         sc.MaxPages,
			PerPageCap:       sc.PerPageCap,
			Plateau:          scraper.PlateauPolicy{MaxScrolls: sc.MaxScrolls, Stable: a.cfg.PlateauStable},
			NavTimeout:       a.cfg.NavTimeout,
			DetailNavTimeout: a.cfg.DetailNavTimeout,
			NavSettle:        a.cfg.NavSettle,
			ScrollSettle:     a.cfg.ScrollSettle,
			CardDelay:        a.cfg.CardDelay,
			PageDelay:        a.cfg.PageDelay,
			Enrich:           sc.Enrich(),
		}, a.logger))
		a.logger.Debug("[app] %s: %d pages x %d cards, %d scrolls, enrich %v",
			src, sc.MaxPages, sc.PerPageCap, sc.MaxScrolls, sc.Enrich())
	}
	return crawlers
}

// close releases the browser first, then stores in reverse order of opening.
func (a *app) close() {
	if a.browser != nil {
		a.browser.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("[app] Close: %v", err)
		}
	}
}

func (a *app) String() string {
	return fmt.Sprintf("rental-parser on %s", a.cfg.Addr())
}
