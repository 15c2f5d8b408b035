package object

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	workerpool "github.com/i5heu/ouroboros-objects/pkg/workerPool"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// Registry resolves type ids. Defaults to schema.Default.
	Registry *schema.Registry
	// Store is the flush target and the source of lazily loaded objects.
	// Without a store committed elements only live in the index.
	Store  storage.Store
	Logger *logrus.Logger
	// Pool fans flushes out to the store. Flush writes sequentially without
	// one.
	Pool *workerpool.WorkerPool
}

// Repository is one editing session over an object graph: the workspace of
// live objects, the index of known elements and the elements committed but
// not yet flushed.
type Repository struct {
	registry *schema.Registry
	store    storage.Store
	pool     *workerpool.WorkerPool
	log      *logrus.Entry
	session  uuid.UUID

	workspace     map[ID]*Wrapper
	workspaceRoot *Wrapper

	index   map[types.Key]*element.Element
	pending map[types.Key]*element.Element

	counter       uint64
	commitCounter uint64
}

func NewRepository(opts Options) *Repository {
	if opts.Registry == nil {
		opts.Registry = schema.Default
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	session := uuid.New()
	return &Repository{
		registry:  opts.Registry,
		store:     opts.Store,
		pool:      opts.Pool,
		log:       opts.Logger.WithField("session", session.String()),
		session:   session,
		workspace: make(map[ID]*Wrapper),
		index:     make(map[types.Key]*element.Element),
		pending:   make(map[types.Key]*element.Element),
	}
}

func (r *Repository) SessionID() uuid.UUID {
	return r.session
}

func (r *Repository) Registry() *schema.Registry {
	return r.registry
}

// NewWorkingID allocates the next working id of this session.
func (r *Repository) NewWorkingID() ID {
	r.counter++
	return workingID(r.counter)
}

// CreateObject creates an empty, modified object in the workspace.
func (r *Repository) CreateObject(t schema.TypeID) (*Wrapper, error) {
	msg, err := r.registry.New(t)
	if err != nil {
		return nil, err
	}
	w := newRoot(r, r.registry, msg)
	w.state.workingID = r.NewWorkingID()
	w.state.modified = true
	r.workspace[w.state.workingID] = w
	return w, nil
}

// SetWorkspaceRoot marks w as the synthetic top of the session. Modifying it
// never propagates further up.
func (r *Repository) SetWorkspaceRoot(w *Wrapper) error {
	if err := r.own(w); err != nil {
		return err
	}
	r.workspaceRoot = w
	return nil
}

func (r *Repository) WorkspaceRoot() *Wrapper {
	return r.workspaceRoot
}

// Workspace returns a snapshot of the live objects by id.
func (r *Repository) Workspace() map[ID]*Wrapper {
	out := make(map[ID]*Wrapper, len(r.workspace))
	for id, w := range r.workspace {
		out[id] = w
	}
	return out
}

// Lookup returns the live object with the given id.
func (r *Repository) Lookup(id ID) (*Wrapper, bool) {
	w, ok := r.workspace[id]
	if !ok || w.invalid {
		return nil, false
	}
	return w, true
}

// Index returns a committed or loaded element.
func (r *Repository) Index(key types.Key) (*element.Element, bool) {
	e, ok := r.index[key]
	return e, ok
}

// Pending is the number of committed elements not yet flushed.
func (r *Repository) Pending() int {
	return len(r.pending)
}

// Reset invalidates every object of the workspace and empties it. The index
// and unflushed elements are kept.
func (r *Repository) Reset() {
	n := len(r.workspace)
	for _, id := range sortedKeys(r.workspace) {
		r.workspace[id].Invalidate()
	}
	r.workspace = make(map[ID]*Wrapper)
	r.workspaceRoot = nil
	r.log.WithField("objects", n).Info("workspace reset")
}

func (r *Repository) own(w *Wrapper) error {
	if err := w.check(); err != nil {
		return err
	}
	if !w.IsRoot() {
		return w.fail("attach", "", ErrTypeMismatch)
	}
	if w.state.repo != r {
		return w.fail("attach", "", ErrNoRepository)
	}
	return nil
}

// GetLinkedObject resolves the target of a link. Targets are looked up in the
// workspace, then in the index, then in the store; objects loaded from the
// index or the store join the workspace under their content key.
func (r *Repository) GetLinkedObject(link *Wrapper) (*Wrapper, error) {
	if err := link.checkLink(); err != nil {
		return nil, err
	}
	id := link.linkID()
	if id == "" {
		return nil, link.fail("resolve", "", ErrNotInWorkspace)
	}
	want := link.linkType()

	if obj, ok := r.workspace[id]; ok && !obj.invalid {
		if obj.desc.Type != want {
			return nil, link.fail("resolve", "", fmt.Errorf("%w: link wants %s, object is %s", ErrTypeMismatch, want, obj.desc.Type))
		}
		obj.addParentLink(link)
		inheritReadOnly(link, obj)
		return obj, nil
	}

	key, ok := id.Key()
	if !ok {
		return nil, link.fail("resolve", "", fmt.Errorf("%w: %s", ErrNotInWorkspace, id))
	}
	e, err := r.element(context.Background(), key)
	if err != nil {
		return nil, link.fail("resolve", "", err)
	}
	if e.Type != want {
		return nil, link.fail("resolve", "", fmt.Errorf("%w: link wants %s, element is %s", ErrTypeMismatch, want, e.Type))
	}

	obj, err := r.loadElement(e)
	if err != nil {
		return nil, err
	}
	r.workspace[id] = obj
	obj.addParentLink(link)
	inheritReadOnly(link, obj)
	return obj, nil
}

// inheritReadOnly makes targets reached from a read-only object read-only.
func inheritReadOnly(link, obj *Wrapper) {
	if link.root.state.readOnly {
		obj.state.readOnly = true
	}
}

// checkLinkTarget reports whether a link inside owner may point at target:
// both must be live roots of r and target must not be owner or one of its
// ancestors.
func (r *Repository) checkLinkTarget(owner, target *Wrapper) error {
	if err := r.own(owner); err != nil {
		return err
	}
	if err := r.own(target); err != nil {
		return err
	}
	if target == owner {
		return owner.fail("link", "", ErrCycle)
	}
	if cyclic, _ := owner.InParents(target); cyclic {
		return owner.fail("link", "", ErrCycle)
	}
	return nil
}

// SetLinkedObject points link at target and updates the link bookkeeping of
// both ends. It does not mark anything modified; callers go through
// Wrapper.SetLink.
func (r *Repository) SetLinkedObject(link, target *Wrapper) error {
	if err := link.checkLink(); err != nil {
		return err
	}
	if err := r.checkLinkTarget(link.root, target); err != nil {
		return err
	}

	if old, ok := r.workspace[link.linkID()]; ok && old != target && !old.invalid {
		old.state.parentLinks.remove(link)
	}

	ts := target.state
	if err := link.setLinkRaw(ts.workingID, target.desc.Type, ts.childLinks.len() == 0); err != nil {
		return err
	}
	ts.parentLinks.add(link)
	link.root.state.childLinks.add(link)
	return nil
}

// Checkout returns the object stored under key, loading it if needed.
func (r *Repository) Checkout(ctx context.Context, key types.Key) (*Wrapper, error) {
	id := KeyID(key)
	if obj, ok := r.workspace[id]; ok && !obj.invalid {
		return obj, nil
	}
	e, err := r.element(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", key, err)
	}
	obj, err := r.loadElement(e)
	if err != nil {
		return nil, err
	}
	r.workspace[id] = obj
	r.log.WithFields(logrus.Fields{"key": key.String(), "type": e.Type.String()}).Debug("checked out object")
	return obj, nil
}

func (r *Repository) element(ctx context.Context, key types.Key) (*element.Element, error) {
	if e, ok := r.index[key]; ok {
		return e, nil
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInWorkspace, key)
	}
	e, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotInWorkspace, key)
	}
	if err != nil {
		return nil, err
	}
	r.index[key] = e
	return e, nil
}

// loadElement builds an unmodified object from an element. The record is
// parsed on first access, except for non-leaf elements whose links have to be
// registered right away.
func (r *Repository) loadElement(e *element.Element) (*Wrapper, error) {
	msg, err := r.registry.New(e.Type)
	if err != nil {
		return nil, err
	}
	obj := newRoot(r, r.registry, msg)
	if len(e.Value) > 0 {
		obj.state.raw = e.Value
	}
	obj.state.workingID = KeyID(e.Key)
	if !e.IsLeaf {
		if err := obj.FindChildLinks(); err != nil {
			return nil, err
		}
	}
	r.index[e.Key] = e
	return obj, nil
}
