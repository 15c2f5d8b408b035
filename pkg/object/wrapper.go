// Package object implements the versioned object graph: proxies over schema
// typed records, the per session workspace and the commit engine that turns a
// reachable graph into content addressed Structure Elements.
//
// # Proxies
//
// A Wrapper binds one record to its place in the graph. Every object has one
// root Wrapper that owns the session state (working id, modified and read-only
// flags, parent and child links). Nested records, repeated fields and link
// records are reached through derived proxies that delegate to the root.
// Derived proxies are cached per root, so asking twice for the same field
// returns the same proxy.
//
// # Lifecycle
//
// Mutating a committed object gives it a fresh working id and marks it and
// every ancestor reachable through parent links as modified. Commit walks the
// modified graph bottom up, emits one element per object and rewires links to
// the new content keys. A proxy that is invalidated, because its root was torn
// down or because a commit found an identical object, rejects every further
// operation with ErrInvalidated.
//
// # Concurrency
//
// A repository and every proxy reached through it belong to one goroutine at
// a time. Nothing in this package locks.
package object

import (
	"fmt"
	"strings"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	marshalOptions   = proto.MarshalOptions{Deterministic: true}
	unmarshalOptions = proto.UnmarshalOptions{}
)

// Wrapper is a proxy over one schema typed record.
type Wrapper struct {
	root    *Wrapper
	desc    *schema.Descriptor
	invalid bool

	// Derived proxies of singular message fields address their record
	// through the owning proxy and field, so reading an unset field never
	// materializes it. List elements hold their record directly.
	parent *Wrapper
	field  protoreflect.FieldDescriptor
	msg    protoreflect.Message

	state *rootState // roots only
}

type rootState struct {
	repo     *Repository
	registry *schema.Registry

	msg protoreflect.Message
	// raw holds the serialized record of a loaded object until first use
	raw []byte

	workingID ID
	modified  bool
	readOnly  bool

	parentLinks linkSet
	childLinks  linkSet

	derived map[fieldRef]derived
}

type fieldRef struct {
	owner *Wrapper
	num   protoreflect.FieldNumber
}

// derived is implemented by everything cached in rootState.derived.
type derived interface {
	teardown(s *rootState)
}

func newRoot(repo *Repository, registry *schema.Registry, msg protoreflect.Message) *Wrapper {
	w := &Wrapper{
		desc: registry.GetOrBuild(msg.Descriptor()),
		state: &rootState{
			repo:     repo,
			registry: registry,
			msg:      msg,
			derived:  make(map[fieldRef]derived),
		},
	}
	w.root = w
	return w
}

// NewUnattached creates an object outside any repository. It can be read,
// mutated and serialized, but links to it and from it cannot be resolved.
func NewUnattached(registry *schema.Registry, t schema.TypeID) (*Wrapper, error) {
	msg, err := registry.New(t)
	if err != nil {
		return nil, err
	}
	w := newRoot(nil, registry, msg)
	w.state.workingID = UnattachedID
	w.state.modified = true
	return w, nil
}

func (w *Wrapper) check() error {
	if w == nil || w.invalid {
		return ErrInvalidated
	}
	return nil
}

func (w *Wrapper) checkWritable() error {
	if err := w.check(); err != nil {
		return err
	}
	if w.root.state.readOnly || w.root.readOnlyAbove(make(map[*Wrapper]bool)) {
		return w.fail("set", "", ErrReadOnly)
	}
	return nil
}

// readOnlyAbove reports whether marking this root modified would rewrite a
// read-only object. It follows the walk of setParentsModified.
func (w *Wrapper) readOnlyAbove(seen map[*Wrapper]bool) bool {
	s := w.state
	if seen[w] || s.modified {
		return false
	}
	seen[w] = true
	if r := s.repo; r == nil || w == r.workspaceRoot {
		return false
	}
	for _, link := range s.parentLinks.items() {
		if link.invalid {
			continue
		}
		if link.root.state.readOnly || link.root.readOnlyAbove(seen) {
			return true
		}
	}
	return false
}

func (w *Wrapper) repo() (*Repository, error) {
	if r := w.root.state.repo; r != nil {
		return r, nil
	}
	return nil, w.fail("resolve", "", ErrNoRepository)
}

// payload returns the record for reading. Loaded objects are parsed here on
// first use.
func (w *Wrapper) payload() (protoreflect.Message, error) {
	switch {
	case w.state != nil:
		if raw := w.state.raw; raw != nil {
			w.state.raw = nil
			if err := unmarshalOptions.Unmarshal(raw, w.state.msg.Interface()); err != nil {
				w.state.raw = raw
				return nil, w.fail("load", "", err)
			}
		}
		return w.state.msg, nil
	case w.parent != nil:
		pm, err := w.parent.payload()
		if err != nil {
			return nil, err
		}
		return pm.Get(w.field).Message(), nil
	default:
		return w.msg, nil
	}
}

// mutablePayload returns the record for writing, creating it inside its
// parent if needed.
func (w *Wrapper) mutablePayload() (protoreflect.Message, error) {
	if w.parent == nil {
		return w.payload()
	}
	pm, err := w.parent.mutablePayload()
	if err != nil {
		return nil, err
	}
	return pm.Mutable(w.field).Message(), nil
}

func (w *Wrapper) lookupField(op, name string) (*schema.Field, error) {
	f, ok := w.desc.Field(name)
	if !ok {
		return nil, w.fail(op, name, ErrUnknownField)
	}
	return f, nil
}

// subMessage returns the cached proxy of a singular message field.
func (w *Wrapper) subMessage(fd protoreflect.FieldDescriptor) *Wrapper {
	s := w.root.state
	ref := fieldRef{owner: w, num: fd.Number()}
	if d, ok := s.derived[ref]; ok {
		return d.(*Wrapper)
	}
	sub := &Wrapper{
		root:   w.root,
		desc:   s.registry.GetOrBuild(fd.Message()),
		parent: w,
		field:  fd,
	}
	s.derived[ref] = sub
	return sub
}

func (w *Wrapper) teardown(s *rootState) {
	s.dropOwnedBy(w)
	w.invalid = true
}

func (s *rootState) drop(ref fieldRef) {
	d, ok := s.derived[ref]
	if !ok {
		return
	}
	delete(s.derived, ref)
	d.teardown(s)
}

func (s *rootState) dropOwnedBy(owner *Wrapper) {
	for ref := range s.derived {
		if ref.owner == owner {
			s.drop(ref)
		}
	}
}

// Invalidate tears the proxy down. On a root it first invalidates every
// derived proxy and container, then drops the session state.
func (w *Wrapper) Invalidate() {
	if w == nil || w.invalid {
		return
	}
	if w.IsRoot() {
		s := w.state
		for ref := range s.derived {
			s.drop(ref)
		}
		s.parentLinks.clear()
		s.childLinks.clear()
		s.msg = nil
		s.raw = nil
		s.repo = nil
		w.state = nil
	}
	w.invalid = true
}

func (w *Wrapper) Invalid() bool {
	return w == nil || w.invalid
}

// The accessors below return zero values on invalidated proxies; use Invalid
// to tell the difference.

func (w *Wrapper) IsRoot() bool {
	return !w.Invalid() && w.root == w
}

func (w *Wrapper) Root() *Wrapper {
	if w.Invalid() {
		return nil
	}
	return w.root
}

func (w *Wrapper) Repository() *Repository {
	if w.Invalid() {
		return nil
	}
	return w.root.state.repo
}

func (w *Wrapper) Descriptor() *schema.Descriptor {
	if w.Invalid() {
		return nil
	}
	return w.desc
}

// ObjectType is the type id of the record this proxy wraps. Nested records
// without a type identifier report the zero TypeID.
func (w *Wrapper) ObjectType() schema.TypeID {
	if w.Invalid() {
		return schema.TypeID{}
	}
	return w.desc.Type
}

func (w *Wrapper) WorkingID() ID {
	if w.Invalid() {
		return ""
	}
	return w.root.state.workingID
}

func (w *Wrapper) Modified() bool {
	return !w.Invalid() && w.root.state.modified
}

func (w *Wrapper) ReadOnly() bool {
	return !w.Invalid() && w.root.state.readOnly
}

// ParentLinks returns the link proxies, owned by other objects, that point at
// this object.
func (w *Wrapper) ParentLinks() []*Wrapper {
	if w.Invalid() {
		return nil
	}
	return w.root.state.parentLinks.items()
}

// ChildLinks returns the link proxies inside this object's record.
func (w *Wrapper) ChildLinks() []*Wrapper {
	if w.Invalid() {
		return nil
	}
	return w.root.state.childLinks.items()
}

func (w *Wrapper) addParentLink(link *Wrapper) {
	w.root.state.parentLinks.add(link)
}

// setParentsModified marks the root modified under a fresh working id and
// walks up the parent links, rewriting each link to the new id. The walk
// stops at objects that are already modified and at the workspace root,
// which forgets its parents.
func (w *Wrapper) setParentsModified() {
	root := w.root
	s := root.state
	if s.modified {
		return
	}
	s.modified = true

	r := s.repo
	if r == nil {
		return
	}

	newID := r.NewWorkingID()
	if r.workspace[s.workingID] == root {
		delete(r.workspace, s.workingID)
	}
	r.workspace[newID] = root
	s.workingID = newID

	if root == r.workspaceRoot {
		s.parentLinks.clear()
		return
	}

	for _, link := range s.parentLinks.items() {
		if link.invalid {
			s.parentLinks.remove(link)
			continue
		}
		if err := link.setLinkKey(newID); err != nil {
			r.log.WithError(err).Warn("could not rewrite parent link")
			continue
		}
		link.setParentsModified()
	}
}

// InParents reports whether target is this object or one of its ancestors
// through parent links.
func (w *Wrapper) InParents(target *Wrapper) (bool, error) {
	if err := w.check(); err != nil {
		return false, err
	}
	if err := target.check(); err != nil {
		return false, err
	}
	seen := make(map[*Wrapper]bool)
	return w.root.inParents(target.root, seen), nil
}

func (w *Wrapper) inParents(target *Wrapper, seen map[*Wrapper]bool) bool {
	if seen[w] {
		return false
	}
	seen[w] = true
	for _, link := range w.state.parentLinks.items() {
		if link.invalid {
			continue
		}
		if link.root == target || link.root.inParents(target, seen) {
			return true
		}
	}
	return false
}

// SetStructureReadOnly sets or clears the read-only flag on this object and
// every object reachable through its child links.
func (w *Wrapper) SetStructureReadOnly(readOnly bool) error {
	if err := w.check(); err != nil {
		return err
	}
	return w.root.setStructureReadOnly(readOnly, make(map[*Wrapper]bool))
}

func (w *Wrapper) setStructureReadOnly(readOnly bool, seen map[*Wrapper]bool) error {
	if seen[w] {
		return nil
	}
	seen[w] = true
	w.state.readOnly = readOnly

	links := w.state.childLinks.items()
	if len(links) == 0 {
		return nil
	}
	r, err := w.repo()
	if err != nil {
		return err
	}
	for _, link := range links {
		child, err := r.GetLinkedObject(link)
		if err != nil {
			return err
		}
		if err := child.root.setStructureReadOnly(readOnly, seen); err != nil {
			return err
		}
	}
	return nil
}

// FindChildLinks walks the record and registers every link it holds as a
// child link of the root. Ordinary nested records are searched recursively;
// the walk never follows a link to its target.
func (w *Wrapper) FindChildLinks() error {
	if err := w.check(); err != nil {
		return err
	}
	pm, err := w.payload()
	if err != nil {
		return err
	}

	for _, f := range w.desc.Fields() {
		fd := f.Desc
		switch f.Kind {
		case schema.KindRepeatedMessage:
			cl := w.compositeList(fd)
			n := pm.Get(fd).List().Len()
			for i := 0; i < n; i++ {
				if err := cl.elem(i).registerLinks(); err != nil {
					return err
				}
			}
		case schema.KindMessage, schema.KindLink:
			if !pm.Has(fd) {
				continue
			}
			if err := w.subMessage(fd).registerLinks(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Wrapper) registerLinks() error {
	if w.desc.IsLink() {
		w.root.state.childLinks.add(w)
		return nil
	}
	return w.FindChildLinks()
}

// detachLinks unhooks every link inside w from the root's child links and
// from the parent links of targets that are loaded.
func (w *Wrapper) detachLinks() error {
	if w.desc.IsLink() {
		s := w.root.state
		s.childLinks.remove(w)
		if s.repo != nil {
			if target, ok := s.repo.workspace[w.linkID()]; ok && !target.invalid {
				target.state.parentLinks.remove(w)
			}
		}
		return nil
	}

	pm, err := w.payload()
	if err != nil {
		return err
	}
	for _, f := range w.desc.Fields() {
		fd := f.Desc
		switch f.Kind {
		case schema.KindRepeatedMessage:
			cl := w.compositeList(fd)
			n := pm.Get(fd).List().Len()
			for i := 0; i < n; i++ {
				if err := cl.elem(i).detachLinks(); err != nil {
					return err
				}
			}
		case schema.KindMessage, schema.KindLink:
			if pm.Has(fd) {
				if err := w.subMessage(fd).detachLinks(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Equal compares the records of two proxies.
func (w *Wrapper) Equal(other *Wrapper) (bool, error) {
	if err := w.check(); err != nil {
		return false, err
	}
	if err := other.check(); err != nil {
		return false, err
	}
	if w == other {
		return true, nil
	}
	a, err := w.payload()
	if err != nil {
		return false, err
	}
	b, err := other.payload()
	if err != nil {
		return false, err
	}
	return proto.Equal(a.Interface(), b.Interface()), nil
}

func (w *Wrapper) String() string {
	if w.Invalid() {
		return "<invalidated object>"
	}
	if w.desc.IsLink() {
		return fmt.Sprintf("key: %s type { %s } isleaf: %t", w.linkID(), w.linkType(), w.linkIsLeaf())
	}
	pm, err := w.payload()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return prototext.MarshalOptions{Multiline: true}.Format(pm.Interface())
}

func (w *Wrapper) Debug() string {
	if w.Invalid() {
		return "<invalidated object>\n"
	}
	var sb strings.Builder
	s := w.root.state
	fmt.Fprintf(&sb, "================== Wrapper (Modified = %t) ==================\n", s.modified)
	fmt.Fprintf(&sb, "Wrapper ID: %s\n", s.workingID)
	fmt.Fprintf(&sb, "Wrapper IsRoot: %t\n", w.IsRoot())
	fmt.Fprintf(&sb, "Wrapper ReadOnly: %t\n", s.readOnly)
	fmt.Fprintf(&sb, "Wrapper Type: %s (%s)\n", w.desc.Type, w.desc.FullName)
	fmt.Fprintf(&sb, "Wrapper ParentLinks: %d\n", s.parentLinks.len())
	for _, l := range s.childLinks.items() {
		fmt.Fprintf(&sb, "Wrapper ChildLink: %s\n", l)
	}
	sb.WriteString("Wrapper current value:\n")
	sb.WriteString(w.String())
	sb.WriteString("\n================== Wrapper Complete ==================\n")
	return sb.String()
}
