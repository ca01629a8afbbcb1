package headless

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
)

// DefaultPackURL is the release asset template for minimal browser packs.
const DefaultPackURL = "https://github.com/Sparticuz/chromium/releases/download/v{version}/chromium-v{version}-pack.{arch}.tar"

// DefaultPackVersion pins the browser pack release.
const DefaultPackVersion = "143.0.4"

const (
	browserBinary   = "chromium"
	downloadTimeout = 5 * time.Minute
)

// ErrNoBrowserInPack is returned when an archive has no browser executable.
var ErrNoBrowserInPack = errors.New("browser pack has no chromium executable")

// PackConfig locates and caches the browser pack.
type PackConfig struct {
	URLTemplate string
	Version     string
	CacheDir    string
	// Arch overrides the runtime architecture, as "arm64" or "x64".
	Arch string
}

// Provisioner downloads a browser pack once and reuses the extracted binary.
// It implements ExecResolver.
type Provisioner struct {
	cfg    PackConfig
	client *resty.Client
	logger *zap.Logger

	mu   sync.Mutex
	path string
}

// NewProvisioner builds a Provisioner. Empty fields take the defaults.
func NewProvisioner(cfg PackConfig, logger *zap.Logger) *Provisioner {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultPackURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultPackVersion
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.TempDir()
	}
	if cfg.Arch == "" {
		cfg.Arch = PackArch(runtime.GOARCH)
	}
	client := resty.New()
	client.SetTimeout(downloadTimeout)
	return &Provisioner{
		cfg:    cfg,
		client: client,
		logger: logging.OrNop(logger).Named("browser_pack"),
	}
}

// PackArch maps a GOARCH value to the pack naming scheme.
func PackArch(goarch string) string {
	if goarch == "arm64" {
		return "arm64"
	}
	return "x64"
}

// PackURL is the download address for the configured version and arch.
func (p *Provisioner) PackURL() string {
	r := strings.NewReplacer("{version}", p.cfg.Version, "{arch}", p.cfg.Arch)
	return r.Replace(p.cfg.URLTemplate)
}

// Dir is where the pack is extracted.
func (p *Provisioner) Dir() string {
	return filepath.Join(p.cfg.CacheDir, fmt.Sprintf("chromium-%s-%s", p.cfg.Version, p.cfg.Arch))
}

// ExecPath returns the browser executable, downloading and extracting the
// pack on first use.
func (p *Provisioner) ExecPath(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path != "" && fileExists(p.path) {
		return p.path, nil
	}
	target := filepath.Join(p.Dir(), browserBinary)
	if fileExists(target) {
		p.path = target
		return target, nil
	}

	start := time.Now()
	url := p.PackURL()
	res, err := p.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return "", fmt.Errorf("download browser pack: %w", err)
	}
	body := res.RawBody()
	defer body.Close()
	if res.StatusCode() >= 300 {
		return "", fmt.Errorf("download browser pack: status %d", res.StatusCode())
	}

	if err := os.MkdirAll(p.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("create pack dir: %w", err)
	}
	if err := extractPack(body, p.Dir()); err != nil {
		return "", err
	}
	if !fileExists(target) {
		return "", ErrNoBrowserInPack
	}
	p.path = target
	p.logger.Info("browser pack ready",
		zap.String("url", url),
		zap.String("path", target),
		zap.Duration("duration", time.Since(start)))
	return target, nil
}

// extractPack unpacks a pack archive into dir. Entries are flattened to their
// base names. Brotli-compressed entries are decompressed, and compressed
// tarballs inside the pack are unpacked in place.
func extractPack(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read browser pack: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(hdr.Name)
		switch {
		case strings.HasSuffix(name, ".tar.br"):
			if err := extractTree(tar.NewReader(brotli.NewReader(tr)), dir); err != nil {
				return fmt.Errorf("extract %s: %w", name, err)
			}
		case strings.HasSuffix(name, ".br"):
			if err := writeFile(filepath.Join(dir, strings.TrimSuffix(name, ".br")), brotli.NewReader(tr), 0o755); err != nil {
				return err
			}
		default:
			if err := writeFile(filepath.Join(dir, name), tr, os.FileMode(hdr.Mode)&0o777|0o600); err != nil {
				return err
			}
		}
	}
}

// extractTree unpacks a nested archive, keeping its relative layout under dir.
func extractTree(tr *tar.Reader, dir string) error {
	root := filepath.Clean(dir) + string(os.PathSeparator)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, hdr.Name)
		if !strings.HasPrefix(dest, root) {
			return fmt.Errorf("entry %q escapes pack dir", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr, os.FileMode(hdr.Mode)&0o777|0o600); err != nil {
				return err
			}
		}
	}
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
