package ports

import "context"

// Fetcher retrieves remote documents. Content is returned as untrusted bytes.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch downloads the document at url. Transport failures and non-success
	// responses are reported as domain.ErrFetch.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
