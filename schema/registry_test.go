package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCachesResolution(t *testing.T) {
	r := NewRegistry()

	first, err := r.Lookup(Member{})
	require.NoError(t, err)
	second, err := r.Lookup(&Member{})
	require.NoError(t, err)

	assert.Same(t, first, second, "value and pointer forms share one cached entry")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryConcurrentFirstUse(t *testing.T) {
	r := NewRegistry()

	const goroutines = 64
	results := make([]*Metadata, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meta, err := r.Lookup(Member{})
			assert.NoError(t, err)
			results[i] = meta
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i], "all callers converge on one published metadata")
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistryPropagatesResolutionFailure(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(123)
	assert.ErrorIs(t, err, ErrNotModel)
	assert.Equal(t, 0, r.Len())
}
