package artifact

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/analystmesh/core"
)

var _ core.DataFileStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PutGetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	data := []byte("a,b\n1,2\n")
	f, err := s.Put(ctx, "sales.csv", data)
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", f.Name)
	assert.Equal(t, len(data), f.Size)
	assert.Equal(t, core.DataFileRefPrefix+f.ID, f.Ref())

	data[0] = 'X'
	got, err := s.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), got[0])

	got[0] = 'Y'
	again, err := s.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), again[0])
}

func TestInMemoryStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	f1, err := s.Put(ctx, "one.csv", []byte("x"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "two.csv", []byte("y"))
	require.NoError(t, err)

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, s.Delete(ctx, f1.ID))
	assert.ErrorIs(t, s.Delete(ctx, f1.ID), ErrNotFound)
	_, err = s.Get(ctx, f1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_MaxSize(t *testing.T) {
	s := NewInMemoryStore(func(o *InMemoryOptions) { o.MaxSize = 4 })
	_, err := s.Put(context.Background(), "big.csv", []byte("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := s.Put(ctx, fmt.Sprintf("f%d.csv", i), []byte("a"))
			assert.NoError(t, err)
			_, err = s.Get(ctx, f.ID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 20)
}
