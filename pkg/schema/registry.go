package schema

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

var ErrUnknownType = errors.New("schema: unknown type")

// Default is the process wide registry. It starts out with the core types.
var Default = NewRegistry()

// Registry maps type ids to message types and caches one Descriptor per
// message. Descriptors are built on first use and published once; reads
// never take a lock.
type Registry struct {
	descriptors sync.Map // protoreflect.FullName -> *Descriptor
	builds      atomic.Int64

	mu    sync.RWMutex
	types map[TypeID]protoreflect.MessageType
}

func NewRegistry() *Registry {
	r := &Registry{types: make(map[TypeID]protoreflect.MessageType)}
	if err := r.RegisterFile(coreFile); err != nil {
		panic(err)
	}
	return r
}

// GetOrBuild returns the cached descriptor for md, building it on the first
// request. Concurrent first requests may build twice; only the first
// published descriptor is ever returned.
func (r *Registry) GetOrBuild(md protoreflect.MessageDescriptor) *Descriptor {
	if d, ok := r.descriptors.Load(md.FullName()); ok {
		return d.(*Descriptor)
	}
	d := buildDescriptor(md)
	r.builds.Add(1)
	actual, _ := r.descriptors.LoadOrStore(md.FullName(), d)
	return actual.(*Descriptor)
}

// Builds reports how many descriptors were built, including discarded
// duplicates from racing first requests.
func (r *Registry) Builds() int64 {
	return r.builds.Load()
}

// Register makes mt available under the type id its descriptor declares.
// Registering a second message type under an id already taken by a
// different message is an error; re-registering the same message is not.
func (r *Registry) Register(mt protoreflect.MessageType) error {
	md := mt.Descriptor()
	t, ok := TypeOf(md)
	if !ok {
		return fmt.Errorf("schema: %s has no %s enum", md.FullName(), typeIdentifierEnum)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[t]; ok {
		if existing.Descriptor().FullName() != md.FullName() {
			return fmt.Errorf("schema: type %s already registered as %s, cannot register %s",
				t, existing.Descriptor().FullName(), md.FullName())
		}
		return nil
	}
	r.types[t] = mt
	return nil
}

// RegisterFile registers every message in fd, nested ones included, that
// declares a type identifier. Messages without one are skipped.
func (r *Registry) RegisterFile(fd protoreflect.FileDescriptor) error {
	return r.registerMessages(fd.Messages())
}

func (r *Registry) registerMessages(msgs protoreflect.MessageDescriptors) error {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if _, ok := TypeOf(md); ok {
			if err := r.Register(dynamicpb.NewMessageType(md)); err != nil {
				return err
			}
		}
		if err := r.registerMessages(md.Messages()); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDescriptorSet loads a binary FileDescriptorSet, as written by
// protoc --descriptor_set_out --include_imports, and registers all files.
func (r *Registry) RegisterDescriptorSet(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema: read descriptor set: %w", err)
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("schema: decode descriptor set %s: %w", path, err)
	}

	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return fmt.Errorf("schema: resolve descriptor set %s: %w", path, err)
	}

	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		err = r.RegisterFile(fd)
		return err == nil
	})
	return err
}

func (r *Registry) MessageType(t TypeID) (protoreflect.MessageType, error) {
	r.mu.RLock()
	mt, ok := r.types[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return mt, nil
}

// Lookup returns the descriptor of a registered type id.
func (r *Registry) Lookup(t TypeID) (*Descriptor, error) {
	mt, err := r.MessageType(t)
	if err != nil {
		return nil, err
	}
	return r.GetOrBuild(mt.Descriptor()), nil
}

// New allocates an empty message of a registered type.
func (r *Registry) New(t TypeID) (protoreflect.Message, error) {
	mt, err := r.MessageType(t)
	if err != nil {
		return nil, err
	}
	return mt.New(), nil
}

// Types lists the registered type ids.
func (r *Registry) Types() []TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeID, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	return out
}
