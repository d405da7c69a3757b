package objectclient

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/quickread/internal/config"
	"github.com/markdave123-py/quickread/internal/core"
)

func TestMemoryClient_PutGetList(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	payload := []byte("%PDF-1.4")
	require.NoError(t, c.Put(ctx, "uploads/b/two.pdf", bytes.NewReader(payload), int64(len(payload)), "application/pdf"))
	require.NoError(t, c.Put(ctx, "uploads/a/one.pdf", strings.NewReader("1"), 1, "application/pdf"))
	require.NoError(t, c.Put(ctx, "other/x.pdf", strings.NewReader("2"), 1, "application/pdf"))

	payload[0] = 'X'
	got, err := c.Get(ctx, "uploads/b/two.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got), "stored bytes are copied")

	keys, err := c.List(ctx, "uploads/")
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/a/one.pdf", "uploads/b/two.pdf"}, keys)

	ct, ok := c.ContentType("other/x.pdf")
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", ct)
}

func TestMemoryClient_MissingKey(t *testing.T) {
	_, err := NewMemoryClient().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrObjectNotFound)
}

func TestMemoryClient_CancelledPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemoryClient().Put(ctx, "k", strings.NewReader(""), 0, ""), context.Canceled)
}

func TestMemoryClient_PutReadsOnlySizeBytes(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	require.NoError(t, c.Put(ctx, "k", strings.NewReader("%PDF trailing"), 4, "application/pdf"))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(got))
}

func TestNewBlobStore_SelectsBackend(t *testing.T) {
	store, err := NewBlobStore(context.Background(), &config.Config{BlobBackend: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryClient{}, store)

	_, err = NewBlobStore(context.Background(), &config.Config{BlobBackend: "ftp"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewBlobStore(context.Background(), &config.Config{BlobBackend: "s3"}, zerolog.Nop())
	assert.Error(t, err, "missing credentials are rejected before any network call")
}
