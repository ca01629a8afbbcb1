// Package app builds the service graph from configuration and runs the HTTP
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/api"
	"github.com/zdub15/agent-website-generator/internal/clock/system"
	"github.com/zdub15/agent-website-generator/internal/config"
	"github.com/zdub15/agent-website-generator/internal/content"
	"github.com/zdub15/agent-website-generator/internal/export"
	"github.com/zdub15/agent-website-generator/internal/fetcher/headless"
	imagefetcher "github.com/zdub15/agent-website-generator/internal/fetcher/image"
	"github.com/zdub15/agent-website-generator/internal/fetcher/reader"
	"github.com/zdub15/agent-website-generator/internal/hash/sha256"
	"github.com/zdub15/agent-website-generator/internal/id/uuid"
	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/metrics"
	"github.com/zdub15/agent-website-generator/internal/normalize"
	"github.com/zdub15/agent-website-generator/internal/profile"
	pubmemory "github.com/zdub15/agent-website-generator/internal/publisher/memory"
	pubgcp "github.com/zdub15/agent-website-generator/internal/publisher/pubsub"
	"github.com/zdub15/agent-website-generator/internal/resolver"
	"github.com/zdub15/agent-website-generator/internal/scrape"
	"github.com/zdub15/agent-website-generator/internal/site"
	"github.com/zdub15/agent-website-generator/internal/storage/gcs"
	"github.com/zdub15/agent-website-generator/internal/storage/local"
	"github.com/zdub15/agent-website-generator/internal/storage/memory"
	"github.com/zdub15/agent-website-generator/internal/storage/postgres"
	"github.com/zdub15/agent-website-generator/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// App holds the long-lived services built from one Config.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	normalizer normalize.Normalizer
	headshots  *normalize.Service
	scraper    *scrape.Scraper
	resolver   *resolver.Resolver
	sites      *site.Service
	server     *api.Server

	pingers []pinger
	closers []func()
}

// New wires every component. Resources opened before a failure are released.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	metrics.Init()
	a := &App{cfg: cfg, logger: logging.OrNop(logger)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	blobs, staticDir, err := a.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.buildSiteStore(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.normalizer = normalize.Normalizer{
		Width:    cfg.Images.Width,
		Height:   cfg.Images.Height,
		Quality:  cfg.Images.Quality,
		Headroom: cfg.Images.Headroom,
		Sharpen:  cfg.Images.Sharpen,
	}
	a.headshots, err = normalize.NewService(a.normalizer, blobs, cfg.Images.PathPrefix, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init headshot store: %w", err)
	}

	docs := reader.New(reader.Config{
		Endpoint:  cfg.Fetch.ReaderEndpoint,
		APIKey:    cfg.Fetch.APIKey,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, a.logger)
	images := imagefetcher.New(imagefetcher.Config{
		UserAgent: cfg.Headless.UserAgent,
		Timeout:   cfg.ImageTimeout(),
		MinBytes:  cfg.Images.MinBytes,
		MaxBytes:  cfg.Images.MaxBytes,
	}, a.logger)

	strategies, err := a.buildStrategies(images)
	if err != nil {
		return nil, err
	}
	a.resolver = resolver.New(a.headshots, cfg.Images.MinBytes, a.logger, strategies...)
	a.logger.Info("headshot cascade ready", zap.Strings("strategies", a.resolver.Strategies()))

	a.scraper, err = scrape.New(docs, a.resolver, scrape.Config{
		AllowedHosts:      cfg.Fetch.AllowedHosts,
		NormalizeOnScrape: cfg.Images.NormalizeOnScrape,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init scraper: %w", err)
	}

	clock := system.New()
	renderer, err := export.NewRenderer(clock.Now)
	if err != nil {
		return nil, err
	}
	deps := site.Deps{
		Store:     store,
		Profiles:  a.scraper,
		Fallback:  content.Default,
		Headshots: a.headshots,
		Renderer:  renderer,
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     clock,
		Logger:    a.logger,
	}
	if cfg.LLM.APIKey != "" {
		gen, err := content.New(content.Config{
			APIKey:      cfg.LLM.APIKey,
			Endpoint:    cfg.LLM.Endpoint,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init content generator: %w", err)
		}
		deps.Generator = gen
	} else {
		a.logger.Info("no llm api key configured, default content will be used")
	}
	a.sites, err = site.NewService(deps)
	if err != nil {
		return nil, fmt.Errorf("init site service: %w", err)
	}

	opts := api.Options{
		RequestTimeout: cfg.RequestTimeout(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Ready:          a.Ready,
	}
	if cfg.Auth.Enabled {
		opts.APIKey = cfg.Auth.APIKey
	}
	if staticDir != "" {
		opts.StaticDir = staticDir
		opts.StaticPrefix = cfg.Images.PathPrefix
	}
	a.server = api.NewServer(a.sites, a.scraper, sha256.New(), opts, a.logger)
	return a, nil
}

func (a *App) buildBlobStore(ctx context.Context) (profile.BlobStore, string, error) {
	sc := a.cfg.Storage
	switch sc.Provider {
	case "memory":
		a.logger.Info("using in-memory blob store; headshots are not persisted")
		return memory.NewBlobStore(), "", nil
	case "local":
		public := sc.PublicBaseURL
		if public == "" {
			public = "/"
		}
		store, err := local.New(local.Config{BaseDir: sc.Local.BaseDir, PublicBaseURL: public})
		if err != nil {
			return nil, "", fmt.Errorf("init local storage: %w", err)
		}
		a.logger.Info("using local blob store", zap.String("dir", store.BaseDir()))
		staticDir := ""
		if sc.PublicBaseURL == "" {
			staticDir = store.BaseDir()
		}
		return store, staticDir, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("close gcs client", zap.Error(err))
			}
		})
		store, err := gcs.New(client, gcs.Config{Bucket: sc.Bucket, PublicBaseURL: sc.PublicBaseURL})
		if err != nil {
			return nil, "", fmt.Errorf("init gcs storage: %w", err)
		}
		a.pingers = append(a.pingers, store)
		a.logger.Info("using gcs blob store", zap.String("bucket", sc.Bucket))
		return store, "", nil
	default:
		return nil, "", fmt.Errorf("unknown storage provider %q", sc.Provider)
	}
}

func (a *App) buildSiteStore(ctx context.Context) (site.Store, error) {
	dc := a.cfg.DB
	switch dc.Provider {
	case "memory":
		a.logger.Info("using in-memory site store; records are lost on restart")
		return memory.NewSiteStore(), nil
	case "sqlite":
		store, err := sqlite.Open(ctx, dc.DSN)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close sqlite store", zap.Error(err))
			}
		})
		a.pingers = append(a.pingers, store)
		return store, nil
	case "postgres":
		store, err := postgres.NewSiteStore(ctx, postgres.Config{
			DSN:             dc.DSN,
			Table:           dc.Table,
			MaxConns:        dc.MaxConns,
			MinConns:        dc.MinConns,
			MaxConnLifetime: time.Duration(dc.MaxConnLifetime) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		a.pingers = append(a.pingers, store)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db provider %q", dc.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (site.Publisher, error) {
	pc := a.cfg.PubSub
	if pc.ProjectID == "" || pc.TopicName == "" {
		return pubmemory.New(a.logger), nil
	}
	client, err := gpubsub.NewClient(ctx, pc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	pub, err := pubgcp.NewFromClient(ctx, client, pc.TopicName)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Stop)
	a.logger.Info("publishing site events to pubsub", zap.String("topic", pc.TopicName))
	return pub, nil
}

// buildStrategies orders the cascade: direct download, full browser,
// serverless browser, manual.
func (a *App) buildStrategies(images profile.ImageFetcher) ([]resolver.Strategy, error) {
	hc := a.cfg.Headless
	strategies := []resolver.Strategy{resolver.NewDirect(images)}
	if hc.Enabled {
		full, err := headless.NewFinder(headless.Config{
			MaxParallel:       hc.MaxParallel,
			UserAgent:         hc.UserAgent,
			NavigationTimeout: a.cfg.NavTimeout(false),
			ExecPath:          hc.ExecPath,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init browser finder: %w", err)
		}
		pack := headless.NewProvisioner(headless.PackConfig{
			URLTemplate: hc.PackURL,
			Version:     hc.PackVersion,
			CacheDir:    hc.CacheDir,
		}, a.logger)
		minimal, err := headless.NewFinder(headless.Config{
			MaxParallel:       hc.MaxParallel,
			UserAgent:         hc.UserAgent,
			NavigationTimeout: a.cfg.NavTimeout(true),
			Exec:              pack,
			Shell:             true,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init serverless finder: %w", err)
		}
		strategies = append(strategies,
			resolver.NewBrowser(full, images, hc.Serverless),
			resolver.NewServerless(minimal, images),
		)
	}
	return append(strategies, resolver.NewManual(a.logger)), nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Profiles returns the profile scraper.
func (a *App) Profiles() site.ProfileResolver { return a.scraper }

// Headshots returns the normalizing headshot store.
func (a *App) Headshots() profile.HeadshotStore { return a.headshots }

// Normalizer returns the configured image pipeline.
func (a *App) Normalizer() normalize.Normalizer { return a.normalizer }

// Sites returns the site service.
func (a *App) Sites() *site.Service { return a.sites }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Ready pings the configured stores.
func (a *App) Ready(ctx context.Context) error {
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the HTTP server until ctx is cancelled, then drains it.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases stores and clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
