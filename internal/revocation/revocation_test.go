package revocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secvault/internal/magic"
	"secvault/internal/providerid"
	"secvault/internal/store/memstore"
)

func TestHappyPathNoOrphansWhenStoreEmpty(t *testing.T) {
	d := New(memstore.New())

	report := d.CheckForOrphanedKeys(context.Background())
	assert.False(t, report.HasOrphans)
}

func TestHappyPathNoOrphansWhenDeviceSaltPresent(t *testing.T) {
	durable := memstore.New()
	ctx := context.Background()

	require.NoError(t, durable.Set(ctx, magic.DurableKeyAPIKeyStore, []byte(`{"version":2,"keys":{"openai":{}}}`)))
	require.NoError(t, durable.Set(ctx, magic.DurableKeyDeviceSalt, []byte("some-salt")))

	d := New(durable)
	report := d.CheckForOrphanedKeys(ctx)
	assert.False(t, report.HasOrphans)
}

func TestHappyPathDetectsOrphansWhenSaltMissing(t *testing.T) {
	durable := memstore.New()
	ctx := context.Background()

	require.NoError(t, durable.Set(ctx, magic.DurableKeyAPIKeyStore, []byte(`{"version":2,"keys":{"openai":{}}}`)))

	d := New(durable)
	report := d.CheckForOrphanedKeys(ctx)

	require.True(t, report.HasOrphans)
	assert.Equal(t, []string{"openai"}, idsToStrings(report.Providers))
	assert.NotEmpty(t, report.HumanMessage)
}

func TestHappyPathCleanupRemovesKeyStore(t *testing.T) {
	durable := memstore.New()
	ctx := context.Background()

	require.NoError(t, durable.Set(ctx, magic.DurableKeyAPIKeyStore, []byte(`{"version":2,"keys":{"openai":{}}}`)))

	d := New(durable)
	require.NoError(t, d.CleanupOrphanedKeys(ctx))

	_, ok, err := durable.Get(ctx, magic.DurableKeyAPIKeyStore)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSadPathMalformedKeyStoreDegradesToNoOrphans(t *testing.T) {
	durable := memstore.New()
	ctx := context.Background()

	require.NoError(t, durable.Set(ctx, magic.DurableKeyAPIKeyStore, []byte("not-json")))

	d := New(durable)
	report := d.CheckForOrphanedKeys(ctx)
	assert.False(t, report.HasOrphans)
}

func idsToStrings(ids []providerid.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}

	return out
}
