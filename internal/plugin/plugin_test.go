package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// mockSource implements Source for testing.
type mockSource struct {
	kind resource.Kind
	id   string
}

func (m *mockSource) Kind() resource.Kind {
	return m.kind
}

func (m *mockSource) List(_ context.Context) ([]resource.Locator, error) {
	return []resource.Locator{{Raw: m.id}}, nil
}

func (m *mockSource) Tags(_ context.Context, _ resource.Locator) ([]resource.Tag, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("test", func(_ context.Context, region string) (Inventory, error) {
		return NewStaticInventory(region), nil
	})

	f, err := r.Get("test")
	require.NoError(t, err)

	inv, err := f(context.Background(), "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", inv.Region())
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	noop := func(_ context.Context, region string) (Inventory, error) {
		return NewStaticInventory(region), nil
	}
	r.Register("gcp", noop)
	r.Register("aws", noop)

	assert.Equal(t, []string{"aws", "gcp"}, r.Names())
}

func TestStaticInventory_Source(t *testing.T) {
	inv := NewStaticInventory("us-east-1",
		&mockSource{kind: resource.KindVM, id: "first"},
		&mockSource{kind: resource.KindQueue, id: "q"},
		&mockSource{kind: resource.KindVM, id: "second"},
	)

	src, ok := inv.Source(resource.KindVM)
	require.True(t, ok)
	locs, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", locs[0].Raw)

	_, ok = inv.Source(resource.KindManagedDB)
	assert.False(t, ok)
}
