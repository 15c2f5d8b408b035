package object

import (
	"testing"

	"github.com/i5heu/ouroboros-objects/internal/testutil"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holderHelpers struct {
	w *Wrapper
}

func (h holderHelpers) adopt(name string) (*Wrapper, error) {
	child, err := h.w.Repository().CreateObject(testutil.NamedType)
	if err != nil {
		return nil, err
	}
	if err := child.Set("name", name); err != nil {
		return nil, err
	}
	return child, h.w.Set("child", child)
}

func init() {
	RegisterSpecialization(testutil.HolderType, func(w *Wrapper) any { return holderHelpers{w: w} })
}

func TestSpecialized_Link(t *testing.T) {
	r, _ := newTestRepo(t)
	h := newHolder(t, r, "holder")
	first := newNamed(t, r, "first")
	second := newNamed(t, r, "second")

	record, err := h.GetLink("child")
	require.NoError(t, err)
	link, err := As[Link](record)
	require.NoError(t, err)
	assert.Same(t, record, link.Record())

	set, err := link.IsSet()
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, link.Point(first))
	set, err = link.IsSet()
	require.NoError(t, err)
	assert.True(t, set)
	key, err := link.Key()
	require.NoError(t, err)
	assert.Equal(t, first.WorkingID(), key)
	typ, err := link.Type()
	require.NoError(t, err)
	assert.Equal(t, testutil.NamedType, typ)
	leaf, err := link.IsLeaf()
	require.NoError(t, err)
	assert.True(t, leaf)
	committed, err := link.Committed()
	require.NoError(t, err)
	assert.False(t, committed)

	require.NoError(t, link.Point(second))
	target, err := link.Target()
	require.NoError(t, err)
	assert.Same(t, second, target)
	assert.Empty(t, first.ParentLinks())

	_, err = r.Commit(testContext(t), h)
	require.NoError(t, err)
	committed, err = link.Committed()
	require.NoError(t, err)
	assert.True(t, committed)
	target, err = link.Target()
	require.NoError(t, err)
	name, err := target.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "second", name)

	h.Invalidate()
	_, err = As[Link](record)
	assert.ErrorIs(t, err, ErrInvalidated)
}

func TestSpecialized_Registered(t *testing.T) {
	r, _ := newTestRepo(t)
	h := newHolder(t, r, "holder")

	helpers, err := As[holderHelpers](h)
	require.NoError(t, err)
	child, err := helpers.adopt("adopted")
	require.NoError(t, err)
	got, err := h.Get("child")
	require.NoError(t, err)
	assert.Same(t, child, got)

	_, err = As[Link](h)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = newNamed(t, r, "plain").Specialized()
	assert.ErrorIs(t, err, ErrNoSpecialization)
	var oe *ObjectError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, testutil.NamedType, oe.Type)
}

func TestRegisterSpecialization_Panics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterSpecialization(schema.LinkType, func(w *Wrapper) any { return nil })
	})
	assert.Panics(t, func() {
		RegisterSpecialization(schema.TypeID{ObjectID: 9999, Version: 1}, nil)
	})
}
