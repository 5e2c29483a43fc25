// Package fetch implements document retrieval over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.trai.ch/lpkg/internal/build"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	defaultTimeout = 30 * time.Second
	// maxDocumentSize bounds the size of a fetched page or manifest.
	maxDocumentSize = 32 << 20
)

// Fetcher implements ports.Fetcher with net/http.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher with the default timeout.
func New() *Fetcher {
	return NewWithClient(&http.Client{Timeout: defaultTimeout})
}

// NewWithClient creates a Fetcher that uses the given client.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads the document at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrFetch, err), "url", url)
	}
	req.Header.Set("User-Agent", "lpkg/"+build.Version)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrFetch, err), "url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := zerr.Wrap(domain.ErrFetch, fmt.Sprintf("unexpected status %s", resp.Status))
		return nil, zerr.With(zerr.With(err, "url", url), "status", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrFetch, err), "url", url)
	}
	if len(data) > maxDocumentSize {
		return nil, zerr.With(zerr.Wrap(domain.ErrFetch, "document too large"), "url", url)
	}
	return data, nil
}
