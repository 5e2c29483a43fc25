package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/fetch"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.UserAgent(), "lpkg/"))
		_, _ = w.Write([]byte("https://ftp.gnu.org/gnu/m4/m4-1.4.19.tar.xz\n"))
	}))
	defer srv.Close()

	data, err := fetch.New().Fetch(t.Context(), srv.URL+"/wget-list")
	require.NoError(t, err)
	assert.Equal(t, "https://ftp.gnu.org/gnu/m4/m4-1.4.19.tar.xz\n", string(data))
}

func TestFetcher_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := fetch.New().Fetch(t.Context(), srv.URL+"/missing")
	require.ErrorIs(t, err, domain.ErrFetch)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, zErr.Metadata()["status"])
}

func TestFetcher_FetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := fetch.New().Fetch(t.Context(), url)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetcher_FetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := fetch.New().Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, domain.ErrFetch)
}
