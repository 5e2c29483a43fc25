// Package sources downloads and verifies the source archives of build definitions.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/build"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
)

// gnuOrigin is the canonical GNU download location replaced by a configured mirror.
const gnuOrigin = "ftp.gnu.org/gnu"

var _ ports.SourceFetcher = (*Fetcher)(nil)

// Fetcher implements ports.SourceFetcher. Sources of every package share one directory.
type Fetcher struct {
	dir      string
	mirror   string
	client   *http.Client
	logger   ports.Logger
	progress io.Writer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client used for downloads.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithProgress renders a progress bar for every download to w.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) { f.progress = w }
}

// New creates a Fetcher that stores sources in dir. A non-empty gnuMirror replaces
// the ftp.gnu.org/gnu part of source URLs.
func New(dir, gnuMirror string, logger ports.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:      dir,
		mirror:   strings.TrimRight(gnuMirror, "/"),
		client:   &http.Client{},
		logger:   logger,
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads every source of def into the sources directory and returns the local paths
// in source order. Files that are present and match their checksums are not downloaded again.
func (f *Fetcher) Fetch(ctx context.Context, def *domain.BuildDefinition) ([]string, error) {
	paths := make([]string, 0, len(def.Sources))
	for _, src := range def.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := f.fetchOne(ctx, src.URL, def.Checksums)
		if err != nil {
			return nil, zerr.With(err, "id", def.ID)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// MirrorURL applies the configured GNU mirror to a source URL.
func (f *Fetcher) MirrorURL(raw string) string {
	if f.mirror == "" {
		return raw
	}
	for _, scheme := range []string{"https://", "http://", "ftp://"} {
		if strings.HasPrefix(raw, scheme+gnuOrigin) {
			return f.mirror + strings.TrimPrefix(raw, scheme+gnuOrigin)
		}
	}
	return raw
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL string, checksums []domain.Checksum) (string, error) {
	name, err := fileName(rawURL)
	if err != nil {
		return "", err
	}
	target := filepath.Join(f.dir, name)
	sums := checksumsFor(checksums, name)

	lock, err := fs.Lock(target)
	if err != nil {
		return "", err
	}
	defer lock.Unlock() //nolint:errcheck // Released on close anyway

	// Another process may have finished the download while we waited for the lock.
	if _, err := os.Stat(target); err == nil {
		if err := verify(target, sums); err == nil {
			return target, nil
		}
		f.logger.Warn("discarding " + name + ", it does not match its checksum")
		if err := os.Remove(target); err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to remove stale source"), "path", target)
		}
	}

	finalURL := f.MirrorURL(rawURL)
	if finalURL != rawURL {
		f.logger.Info("using GNU mirror for " + name)
	}
	f.logger.Info("downloading " + finalURL)

	tmp, err := f.download(ctx, finalURL, target)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp) //nolint:errcheck // Gone after a successful rename

	if err := verify(tmp, sums); err != nil {
		return "", zerr.With(err, "url", finalURL)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to move source into place"), "path", target)
	}
	return target, nil
}

// download streams url into a temporary file next to target and returns its path.
func (f *Fetcher) download(ctx context.Context, rawURL, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", zerr.With(errors.Join(domain.ErrFetch, err), "url", rawURL)
	}
	req.Header.Set("User-Agent", "lpkg/"+build.Version)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", zerr.With(errors.Join(domain.ErrFetch, err), "url", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := zerr.Wrap(domain.ErrFetch, fmt.Sprintf("unexpected status %s", resp.Status))
		return "", zerr.With(zerr.With(err, "url", rawURL), "status", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create sources directory"), "path", f.dir)
	}
	out, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create download file"), "path", target)
	}

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetWriter(f.progress),
		progressbar.OptionSetDescription(filepath.Base(target)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)

	_, copyErr := io.Copy(io.MultiWriter(out, bar), resp.Body)
	_ = bar.Finish()
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(out.Name())
		return "", zerr.With(errors.Join(domain.ErrFetch, err), "url", rawURL)
	}
	return out.Name(), nil
}

func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", zerr.With(errors.Join(domain.ErrFetch, err), "url", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", zerr.With(zerr.Wrap(domain.ErrFetch, "source url has no file name"), "url", rawURL)
	}
	return name, nil
}
