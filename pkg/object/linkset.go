package object

// linkSet is a set of link proxies that remembers insertion order, so
// traversals over child and parent links are deterministic.
type linkSet struct {
	order []*Wrapper
	index map[*Wrapper]int
}

func (s *linkSet) add(l *Wrapper) {
	if s.index == nil {
		s.index = make(map[*Wrapper]int)
	}
	if _, ok := s.index[l]; ok {
		return
	}
	s.index[l] = len(s.order)
	s.order = append(s.order, l)
}

func (s *linkSet) remove(l *Wrapper) {
	i, ok := s.index[l]
	if !ok {
		return
	}
	copy(s.order[i:], s.order[i+1:])
	s.order[len(s.order)-1] = nil
	s.order = s.order[:len(s.order)-1]
	delete(s.index, l)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

func (s *linkSet) has(l *Wrapper) bool {
	_, ok := s.index[l]
	return ok
}

func (s *linkSet) len() int {
	return len(s.order)
}

// items returns a snapshot that stays stable while the set changes.
func (s *linkSet) items() []*Wrapper {
	out := make([]*Wrapper, len(s.order))
	copy(out, s.order)
	return out
}

func (s *linkSet) clear() {
	s.order = nil
	s.index = nil
}
