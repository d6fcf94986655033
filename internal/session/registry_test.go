package session

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/dreamffi/internal/dm"
)

func newTestRegistry() *Registry {
	return NewRegistry(dm.NewLoader(dm.Options{}), zerolog.Nop())
}

func TestRegistry_OpenExportClose(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id, err := r.Open(ctx, []string{fixtureEnv(t)})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Has(id))

	doc, err := r.Export(id, (*Session).ExportFileList)
	require.NoError(t, err)
	assert.Contains(t, doc, `"environment.dme"`)

	doc, err = r.Export(id, func(s *Session) ([]byte, error) { return s.ExportTypeInfo("/mob") })
	require.NoError(t, err)
	assert.Contains(t, doc, `"path":"/mob"`)

	require.NoError(t, r.Close(id))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Has(id))

	_, err = r.Export(id, (*Session).ExportFileList)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, r.Close(id), ErrUnknownSession)
}

func TestRegistry_OpenFailure(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Open(context.Background(), nil)
	assert.True(t, dm.IsConstructionError(err, dm.EnvironmentLoadFailed))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_QueryErrorPassesThrough(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Open(context.Background(), []string{fixtureEnv(t)})
	require.NoError(t, err)
	defer r.CloseAll()

	_, err = r.Export(id, func(s *Session) ([]byte, error) { return s.ExportTypeInfo("/nope") })
	assert.True(t, IsQueryError(err, PathNotFound))

	_, err = r.Export(id, (*Session).ExportTypeList)
	assert.NoError(t, err)
}

func TestRegistry_ConcurrentExports(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		id, err := r.Open(ctx, []string{fixtureEnv(t)})
		require.NoError(t, err)
		ids[i] = id
	}

	want, err := r.Export(ids[0], (*Session).ExportTypeList)
	require.NoError(t, err)

	var wg sync.WaitGroup
	docs := make([]string, 24)
	errs := make([]error, len(docs))
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docs[i], errs[i] = r.Export(ids[i%len(ids)], (*Session).ExportTypeList)
		}(i)
	}
	wg.Wait()

	for i := range docs {
		require.NoError(t, errs[i])
		assert.Equal(t, want, docs[i])
	}

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}
