package progrock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/telemetry/progrock"
)

func TestNew(t *testing.T) {
	recorder := progrock.New()
	assert.NotNil(t, recorder)
}

func TestRecorder_Integration(t *testing.T) {
	recorder := progrock.New()

	ctx := context.Background()
	_, vertex := recorder.Record(ctx, "mlfs/binutils@pass-1")

	_, err := vertex.Stdout().Write([]byte("checking build system type...\n"))
	require.NoError(t, err)
	_, err = vertex.Stderr().Write([]byte("warning: deprecated option\n"))
	require.NoError(t, err)
	vertex.Complete(nil)

	_, cached := recorder.Record(ctx, "lfs/zlib")
	cached.Cached()
	cached.Complete(nil)

	_, failed := recorder.Record(ctx, "lfs/gcc")
	failed.Complete(errors.New("phase build failed"))

	assert.NoError(t, recorder.Close())
}
