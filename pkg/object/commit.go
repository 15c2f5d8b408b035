package object

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	workerpool "github.com/i5heu/ouroboros-objects/pkg/workerPool"
	"github.com/sirupsen/logrus"
)

// Commit turns every modified object reachable from root into elements,
// rewires the links to the new content keys and flushes the new elements to
// the store. It returns the content key of root.
//
// Elements of children that committed before a failure are kept and flushed
// with the next successful commit.
func (r *Repository) Commit(ctx context.Context, root *Wrapper) (types.Key, error) {
	if err := r.own(root); err != nil {
		return types.Key{}, err
	}

	structure := make(map[types.Key]*element.Element)
	key, err := r.recurseCommit(root, structure)
	for k, e := range structure {
		r.index[k] = e
		r.pending[k] = e
	}
	if err != nil {
		return types.Key{}, err
	}

	r.log.WithFields(logrus.Fields{
		"key":      key.String(),
		"elements": len(structure),
	}).Info("committed object graph")

	if err := r.Flush(ctx); err != nil {
		return key, err
	}
	return key, nil
}

// CommitStructure runs the commit traversal without flushing and returns the
// elements it produced.
func (r *Repository) CommitStructure(root *Wrapper) (types.Key, map[types.Key]*element.Element, error) {
	if err := r.own(root); err != nil {
		return types.Key{}, nil, err
	}
	structure := make(map[types.Key]*element.Element)
	key, err := r.recurseCommit(root, structure)
	for k, e := range structure {
		r.index[k] = e
		r.pending[k] = e
	}
	return key, structure, err
}

func (r *Repository) recurseCommit(w *Wrapper, structure map[types.Key]*element.Element) (types.Key, error) {
	if err := w.check(); err != nil {
		return types.Key{}, err
	}
	s := w.state
	r.commitCounter++
	r.log.WithFields(logrus.Fields{
		"working_id": s.workingID.String(),
		"type":       w.desc.Type.String(),
		"modified":   s.modified,
		"visit":      r.commitCounter,
		"children":   s.childLinks.len(),
		"structure":  len(structure),
	}).Debug("entering recurse commit")

	if !s.modified {
		if key, ok := s.workingID.Key(); ok {
			return key, nil
		}
	}

	childKeys := make([]types.Key, 0, s.childLinks.len())
	for _, link := range s.childLinks.items() {
		if link.invalid {
			s.childLinks.remove(link)
			continue
		}
		if key, ok := link.linkID().Key(); ok {
			e, known := structure[key]
			if !known {
				e, known = r.index[key]
			}
			if known {
				if err := link.setLinkIsLeaf(e.IsLeaf); err != nil {
					return types.Key{}, err
				}
				childKeys = append(childKeys, key)
				continue
			}
		}

		child, err := r.GetLinkedObject(link)
		if err != nil {
			return types.Key{}, err
		}
		if err := link.setLinkIsLeaf(child.state.childLinks.len() == 0); err != nil {
			return types.Key{}, err
		}
		if _, err := r.recurseCommit(child, structure); err != nil {
			return types.Key{}, err
		}
		key, ok := link.linkID().Key()
		if !ok {
			return types.Key{}, link.fail("commit", "", fmt.Errorf("%w: link still holds working id %s", ErrNotInWorkspace, link.linkID()))
		}
		childKeys = append(childKeys, key)
	}

	value, err := w.Serialize()
	if err != nil {
		return types.Key{}, err
	}
	e := element.New(w.desc.Type, value, s.childLinks.len() == 0, childKeys)
	key := e.Key
	if _, ok := structure[key]; !ok {
		structure[key] = e
	}

	myID := s.workingID
	if r.workspace[myID] == w {
		delete(r.workspace, myID)
	}
	keyID := KeyID(key)

	if other, ok := r.workspace[keyID]; ok && other != w && !other.invalid {
		r.log.WithFields(logrus.Fields{
			"key":        key.String(),
			"working_id": myID.String(),
		}).Warn("identical object committed twice, merging into one element")
		r.merge(w, other, keyID)
		return key, nil
	}
	r.workspace[keyID] = w

	s.workingID = keyID
	s.modified = false
	for _, link := range s.parentLinks.items() {
		if link.invalid {
			s.parentLinks.remove(link)
			continue
		}
		if err := link.setLinkKey(keyID); err != nil {
			return types.Key{}, err
		}
	}
	return key, nil
}

// merge reconciles two live objects that hashed to the same content key.
// Every parent link of either one is pointed at the key and both proxies are
// invalidated, so the next access through any of those links loads one shared
// object from the index.
func (r *Repository) merge(w, other *Wrapper, keyID ID) {
	links := append(other.state.parentLinks.items(), w.state.parentLinks.items()...)
	if r.workspaceRoot == w || r.workspaceRoot == other {
		r.workspaceRoot = nil
	}
	delete(r.workspace, keyID)
	other.Invalidate()
	w.Invalidate()

	for _, link := range links {
		if link.invalid || link.linkID() == keyID {
			continue
		}
		if err := link.setLinkKey(keyID); err != nil {
			r.log.WithError(err).Warn("could not rewrite link during merge")
		}
	}
}

// Flush writes the committed elements to the store. Elements stay pending
// until a flush succeeds.
func (r *Repository) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if r.store == nil {
		r.pending = make(map[types.Key]*element.Element)
		return nil
	}

	elements := make([]*element.Element, 0, len(r.pending))
	for _, e := range r.pending {
		elements = append(elements, e)
	}
	sort.Slice(elements, func(i, j int) bool { return elements[i].Key.Compare(elements[j].Key) < 0 })

	var err error
	switch bs := r.store.(type) {
	case storage.BatchStore:
		err = bs.PutBatch(ctx, elements)
	default:
		err = r.putAll(ctx, elements)
	}
	if err != nil {
		r.log.WithError(err).WithField("elements", len(elements)).Error("flush failed")
		return fmt.Errorf("flush: %w", err)
	}

	r.log.WithField("elements", len(elements)).Info("flushed elements")
	r.pending = make(map[types.Key]*element.Element)
	return nil
}

func (r *Repository) putAll(ctx context.Context, elements []*element.Element) error {
	if r.pool == nil {
		for _, e := range elements {
			if err := r.store.Put(ctx, e.Key, e); err != nil {
				return err
			}
		}
		return nil
	}

	room := r.pool.CreateRoom(len(elements))
	room.AsyncCollector()
	var submitErr error
	for _, e := range elements {
		e := e
		err := room.NewTaskWaitForFreeSlot(ctx, func() interface{} {
			return r.store.Put(ctx, e.Key, e)
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	results := room.GetAsyncResults()
	return errors.Join(submitErr, workerpool.JoinErrors(results))
}
