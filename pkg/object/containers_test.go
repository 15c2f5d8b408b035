package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarList(t *testing.T) {
	r, _ := newTestRepo(t)
	w := newNamed(t, r, "list owner")
	_, err := r.Commit(testContext(t), w)
	require.NoError(t, err)

	v, err := w.Get("tags")
	require.NoError(t, err)
	tags := v.(*ScalarList)

	require.NoError(t, tags.Append("a"))
	assert.True(t, w.Modified(), "mutating a list marks the owner modified")

	require.NoError(t, tags.Extend("b", "c"))
	require.NoError(t, tags.Insert(0, "z"))
	values, err := tags.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{"z", "a", "b", "c"}, values)

	idx, err := tags.Index("b")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	idx, err = tags.Index("nope")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)

	require.NoError(t, tags.Remove("a"))
	assert.ErrorIs(t, tags.Remove("nope"), ErrIndex)

	require.NoError(t, tags.Set(0, "y"))
	got, err := tags.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "y", got)

	part, err := tags.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []any{"b", "c"}, part)

	assert.ErrorIs(t, tags.Extend("d", 5), ErrTypeMismatch)
	n, err := tags.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "a failed extend appends nothing")

	require.NoError(t, tags.Delete(1))
	values, err = tags.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{"y", "c"}, values)

	_, err = tags.Get(5)
	assert.ErrorIs(t, err, ErrIndex)
	assert.ErrorIs(t, tags.Set(-1, "x"), ErrIndex)
	assert.ErrorIs(t, tags.Insert(9, "x"), ErrIndex)
	_, err = tags.Slice(2, 1)
	assert.ErrorIs(t, err, ErrIndex)

	require.NoError(t, tags.DeleteRange(0, 2))
	n, err = tags.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	set, err := w.IsFieldSet("tags")
	require.NoError(t, err)
	assert.False(t, set)
}

func TestScalarList_Numbers(t *testing.T) {
	r, _ := newTestRepo(t)
	w := newNamed(t, r, "numbers")

	v, err := w.Get("samples")
	require.NoError(t, err)
	samples := v.(*ScalarList)

	require.NoError(t, samples.Append(3))
	require.NoError(t, samples.Append(int64(4)))
	require.NoError(t, samples.Insert(2, uint8(9)))
	values, err := samples.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), int64(4), int64(9)}, values)

	assert.ErrorIs(t, samples.Append(1.5), ErrTypeMismatch)
}

func TestScalarList_Invalidated(t *testing.T) {
	r, _ := newTestRepo(t)
	w := newNamed(t, r, "gone")
	v, err := w.Get("tags")
	require.NoError(t, err)
	tags := v.(*ScalarList)

	w.Invalidate()
	assert.True(t, tags.Invalid())
	assert.ErrorIs(t, tags.Append("x"), ErrInvalidated)
	_, err = tags.Len()
	assert.ErrorIs(t, err, ErrInvalidated)
}

func TestCompositeList_Links(t *testing.T) {
	r, _ := newTestRepo(t)
	h := newHolder(t, r, "h")
	a := newNamed(t, r, "a")
	b := newNamed(t, r, "b")
	c := newNamed(t, r, "c")

	children := childrenOf(t, h)
	la, err := children.AddLink(a)
	require.NoError(t, err)
	lb, err := children.AddLink(b)
	require.NoError(t, err)

	n, err := children.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.ChildLinks(), 2)

	got, err := children.Get(0)
	require.NoError(t, err)
	assert.Same(t, a, got)

	link, err := children.GetLink(1)
	require.NoError(t, err)
	assert.Same(t, lb, link)
	key, err := link.LinkKey()
	require.NoError(t, err)
	assert.Equal(t, b.WorkingID(), key)

	require.NoError(t, children.Set(0, c))
	got, err = children.Get(0)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Empty(t, a.ParentLinks())
	assert.Equal(t, []*Wrapper{la}, c.ParentLinks())

	assert.ErrorIs(t, children.Set(0, "x"), ErrTypeMismatch)

	all, err := children.Slice(0, -1)
	require.NoError(t, err)
	assert.Equal(t, []*Wrapper{la, lb}, all)

	require.NoError(t, children.Delete(0))
	assert.True(t, la.Invalid())
	assert.Empty(t, c.ParentLinks())
	assert.Equal(t, []*Wrapper{lb}, h.ChildLinks())

	got, err = children.Get(0)
	require.NoError(t, err)
	assert.Same(t, b, got)
	_, err = children.Get(3)
	assert.ErrorIs(t, err, ErrIndex)

	_, err = children.AddLink(h)
	assert.ErrorIs(t, err, ErrCycle)
	n, err = children.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a rejected link is not kept")
}

func TestCompositeList_RejectedLinkLeavesOwnerClean(t *testing.T) {
	r, _ := newTestRepo(t)
	other, _ := newTestRepo(t)
	top := newHolder(t, r, "top")
	h := newHolder(t, r, "h")
	require.NoError(t, top.Set("child", h))
	_, err := r.Commit(testContext(t), top)
	require.NoError(t, err)
	id := h.WorkingID()

	dead := newNamed(t, r, "dead")
	dead.Invalidate()

	children := childrenOf(t, h)
	for name, target := range map[string]*Wrapper{
		"self":        h,
		"ancestor":    top,
		"foreign":     newNamed(t, other, "foreign"),
		"invalidated": dead,
		"nil":         nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := children.AddLink(target)
			require.Error(t, err)
			assert.False(t, h.Modified())
			assert.False(t, top.Modified())
			assert.Equal(t, id, h.WorkingID())
			n, err := children.Len()
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestCompositeList_Records(t *testing.T) {
	r, _ := newTestRepo(t)
	h := newHolder(t, r, "h")
	a := newNamed(t, r, "a")

	v, err := h.Get("entries")
	require.NoError(t, err)
	entries := v.(*CompositeList)

	e0, err := entries.Add()
	require.NoError(t, err)
	set, err := h.IsFieldSet("entries")
	require.NoError(t, err)
	assert.False(t, set, "an empty element does not count as set")

	require.NoError(t, e0.Set("note", "first"))
	e1, err := entries.Add()
	require.NoError(t, err)
	require.NoError(t, e1.Set("note", "second"))
	require.NoError(t, e1.Set("ref", a))
	assert.Len(t, h.ChildLinks(), 1)

	set, err = h.IsFieldSet("entries")
	require.NoError(t, err)
	assert.True(t, set)

	assert.ErrorIs(t, entries.Set(0, e1), ErrTypeMismatch)
	_, err = entries.GetLink(0)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = entries.AddLink(a)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	require.NoError(t, entries.Delete(0))
	assert.True(t, e0.Invalid())
	got, err := entries.Get(0)
	require.NoError(t, err)
	assert.Same(t, e1, got)
	note, err := e1.Get("note")
	require.NoError(t, err)
	assert.Equal(t, "second", note)
	ref, err := e1.Get("ref")
	require.NoError(t, err)
	assert.Same(t, a, ref)

	require.NoError(t, entries.DeleteRange(0, 1))
	assert.True(t, e1.Invalid())
	assert.Empty(t, h.ChildLinks())
	assert.Empty(t, a.ParentLinks())
}

func TestWrapper_ListAccessors(t *testing.T) {
	r, _ := newTestRepo(t)
	h := newHolder(t, r, "h")
	a := newNamed(t, r, "a")

	children, err := h.CompositeList("children")
	require.NoError(t, err)
	assert.Same(t, childrenOf(t, h), children)
	link, err := children.AddLink(a)
	require.NoError(t, err)
	links, err := children.Links()
	require.NoError(t, err)
	assert.Equal(t, []*Wrapper{link}, links)

	entries, err := h.CompositeList("entries")
	require.NoError(t, err)
	_, err = entries.Links()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = h.ScalarList("children")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = a.CompositeList("tags")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	tags, err := a.ScalarList("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Append("t"))
}
