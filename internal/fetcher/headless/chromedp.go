// Package headless finds agent photos in JavaScript-rendered profile pages
// using chromedp, and provisions a minimal browser when none is installed.
package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
)

// PhotoSelectors are tried in order before the inline-image fallback.
var PhotoSelectors = []string{
	"#ContentPlaceHolder1_PAWdata_imgPersonalPic",
	".agent-image img",
	".profile-photo img",
	"img.img-responsive[src^='data:image']",
	"img[src^='data:image/png']",
	"img[src^='data:image/jpeg']",
}

// MinInlineArea is the smallest rendered area, in CSS pixels, an inline
// image needs to be considered by the fallback scan.
const MinInlineArea = 10000

// LargestInlineSelector marks a photo found by the fallback scan.
const LargestInlineSelector = "largest-inline"

const (
	defaultNavTimeout = 60 * time.Second
	maxIdleWait       = 15 * time.Second
)

// Search failures that mean "nothing to find" rather than a broken browser.
var (
	ErrNoPhoto   = errors.New("no photo element found")
	ErrProvision = errors.New("browser unavailable")
)

// ExecResolver supplies the browser executable for one search.
type ExecResolver interface {
	ExecPath(ctx context.Context) (string, error)
}

// Config controls the photo finder.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath pins the browser binary. Exec, when set, takes precedence.
	ExecPath string
	Exec     ExecResolver
	// Shell adds the flags a minimal browser needs in constrained sandboxes.
	Shell bool
}

// Photo is the image element chosen on a rendered page.
type Photo struct {
	Found    bool    `json:"found"`
	Src      string  `json:"src"`
	Selector string  `json:"selector"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Inline reports whether the photo is embedded as a data URL.
func (p Photo) Inline() bool {
	return strings.HasPrefix(strings.ToLower(p.Src), "data:")
}

// Finder runs one scoped browser per search.
type Finder struct {
	cfg     Config
	limiter chan struct{}
	logger  *zap.Logger
}

// NewFinder creates a Finder.
func NewFinder(cfg Config, logger *zap.Logger) (*Finder, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Finder{
		cfg:     cfg,
		limiter: limiter,
		logger:  logging.OrNop(logger).Named("headless"),
	}, nil
}

// FindPhoto renders pageURL, waits for the network to go idle and returns
// the best photo element. The browser is torn down before FindPhoto returns.
func (f *Finder) FindPhoto(ctx context.Context, pageURL string) (Photo, error) {
	if err := f.acquire(ctx); err != nil {
		return Photo{}, err
	}
	defer f.release()

	opts, err := f.allocatorOptions(ctx)
	if err != nil {
		return Photo{}, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer func() {
		if err := chromedp.Cancel(browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Warn("browser shutdown failed", zap.Error(err))
		}
		browserCancel()
	}()

	navCtx, cancel := context.WithTimeout(browserCtx, f.navTimeout())
	defer cancel()

	start := time.Now()
	var photo Photo
	actions := []chromedp.Action{
		f.networkSetupAction(),
		navigateAndWaitIdle(pageURL, maxIdleWait),
		chromedp.Evaluate(photoScript(), &photo),
	}
	if err := chromedp.Run(navCtx, actions...); err != nil {
		return Photo{}, fmt.Errorf("chromedp run: %w", err)
	}
	f.logger.Debug("photo search finished",
		zap.String("url", pageURL),
		zap.Bool("found", photo.Found),
		zap.String("selector", photo.Selector),
		zap.Duration("duration", time.Since(start)))
	if !photo.Found || photo.Src == "" {
		return Photo{}, ErrNoPhoto
	}
	photo.Src = absoluteSrc(pageURL, photo.Src)
	return photo, nil
}

func (f *Finder) allocatorOptions(ctx context.Context) ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1280, 900),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}

	execPath := f.cfg.ExecPath
	if f.cfg.Exec != nil {
		p, err := f.cfg.Exec.ExecPath(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProvision, err)
		}
		execPath = p
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if f.cfg.Shell {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("single-process", true),
			chromedp.Flag("no-zygote", true),
		)
		if execPath != "" {
			dir := filepath.Dir(execPath)
			opts = append(opts, chromedp.Env("LD_LIBRARY_PATH="+filepath.Join(dir, "lib")+":"+dir))
		}
	}
	return opts, nil
}

func (f *Finder) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// navigateAndWaitIdle loads target and blocks until the page reports network
// idle, or maxWait passes.
func navigateAndWaitIdle(target string, maxWait time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		idle := newIdleWatch()
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		chromedp.ListenTarget(listenCtx, idle.observe)

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := chromedp.Navigate(target).Do(ctx); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		select {
		case <-idle.done:
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// idleWatch closes done on the first networkIdle event that follows a
// navigation start.
type idleWatch struct {
	mu      sync.Mutex
	started bool
	once    sync.Once
	done    chan struct{}
}

func newIdleWatch() *idleWatch {
	return &idleWatch{done: make(chan struct{})}
}

func (w *idleWatch) observe(ev any) {
	lifecycle, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch lifecycle.Name {
	case "init":
		w.started = true
	case "networkIdle":
		if w.started {
			w.once.Do(func() { close(w.done) })
		}
	}
}

func photoScript() string {
	selectors, _ := json.Marshal(PhotoSelectors)
	return fmt.Sprintf(`(() => {
  const selectors = %s;
  const srcOf = (img) => img.currentSrc || img.getAttribute("src") || "";
  const pick = (img, selector) => ({
    found: true,
    src: srcOf(img),
    selector: selector,
    width: img.naturalWidth || img.width || 0,
    height: img.naturalHeight || img.height || 0,
  });
  for (const selector of selectors) {
    const el = document.querySelector(selector);
    const src = el ? srcOf(el) : "";
    if (src && !src.startsWith("blob:")) {
      return pick(el, selector);
    }
  }
  let best = null;
  let bestArea = 0;
  for (const img of document.querySelectorAll("img[src^='data:image']")) {
    const rect = img.getBoundingClientRect();
    const area = Math.max(rect.width * rect.height, (img.naturalWidth || 0) * (img.naturalHeight || 0));
    if (area > %d && area > bestArea) {
      best = img;
      bestArea = area;
    }
  }
  return best ? pick(best, %q) : {found: false};
})()`, selectors, MinInlineArea, LargestInlineSelector)
}

func absoluteSrc(pageURL, src string) string {
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

func (f *Finder) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Finder) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func (f *Finder) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}
