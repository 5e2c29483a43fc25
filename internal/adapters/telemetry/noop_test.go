package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/telemetry"
)

func TestNoOp(t *testing.T) {
	tel := telemetry.NewNoOp()
	ctx := context.Background()

	got, vertex := tel.Record(ctx, "lfs/zlib")
	assert.Equal(t, ctx, got)

	n, err := vertex.Stdout().Write([]byte("output"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = vertex.Stderr().Write([]byte("errors"))
	require.NoError(t, err)

	vertex.Cached()
	vertex.Complete(errors.New("boom"))
	assert.NoError(t, tel.Close())
}
