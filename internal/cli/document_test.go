package cli

import (
	"context"
	"testing"

	ouroboros "github.com/i5heu/ouroboros-objects"
	"github.com/i5heu/ouroboros-objects/pkg/object"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memRepo(t *testing.T) *object.Repository {
	t.Helper()
	registry := schema.NewRegistry()
	require.NoError(t, registry.RegisterFile(DemoSchema()))
	db, err := ouroboros.New(ouroboros.Config{
		Store:    ouroboros.StoreConfig{Backend: ouroboros.BackendMemory},
		Registry: registry,
		LogLevel: "error",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo, err := db.NewRepository()
	require.NoError(t, err)
	return repo
}

func TestDocument_Helpers(t *testing.T) {
	repo := memRepo(t)
	w, err := newDocument(repo, "Log", "")
	require.NoError(t, err)
	doc, err := object.As[Document](w)
	require.NoError(t, err)
	assert.Same(t, w, doc.Wrapper())

	require.NoError(t, doc.AddTags("a", "b"))
	tags, err := w.ScalarList("tags")
	require.NoError(t, err)
	values, err := tags.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, values)

	first, err := doc.AddSection("Morning", "Rain.")
	require.NoError(t, err)
	_, err = doc.AddSection("Evening", "")
	require.NoError(t, err)
	_, err = doc.AddSection("", "untitled")
	assert.Error(t, err)
	sections, err := w.CompositeList("sections")
	require.NoError(t, err)
	n, err := sections.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := doc.FindSection("Morning")
	require.NoError(t, err)
	assert.Same(t, first.Wrapper(), found.Wrapper())
	body, err := found.Wrapper().Get("body")
	require.NoError(t, err)
	assert.Equal(t, "Rain.", body)
	_, err = doc.FindSection("Noon")
	assert.ErrorIs(t, err, ErrSectionNotFound)

	person, err := repo.CreateObject(PersonType)
	require.NoError(t, err)
	require.NoError(t, person.Set("name", "Ada"))
	require.NoError(t, doc.SetAuthor(person))
	assert.ErrorIs(t, doc.SetAuthor(first.Wrapper()), object.ErrTypeMismatch)

	key, err := repo.Commit(context.Background(), w)
	require.NoError(t, err)

	require.NoError(t, found.Retitle("Morning, revised"))
	assert.True(t, w.Modified())
	again, err := repo.Commit(context.Background(), w)
	require.NoError(t, err)
	assert.NotEqual(t, key, again)

	_, err = object.As[Document](person)
	assert.ErrorIs(t, err, object.ErrNoSpecialization)
}
