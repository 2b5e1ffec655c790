package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledWithoutBucket(t *testing.T) {
	u, err := New(context.Background(), "", "", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, u.Enabled())

	_, err = u.UploadFile(context.Background(), "/tmp/nope.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bucket configured")
}

func TestObjectKeyLayout(t *testing.T) {
	u := &Uploader{bucket: "b", prefix: "stresslab"}
	ts := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "stresslab/2026-08-29/scenarios.db", u.objectKey("scenarios.db", ts))

	bare := &Uploader{bucket: "b"}
	assert.Equal(t, "snapshots/2026-08-29/scenarios.db", bare.objectKey("scenarios.db", ts))
}
