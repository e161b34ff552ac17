package realtime

// DefaultCapacity bounds the set of recently seen message keys.
const DefaultCapacity = 1000

// seenSet is a fixed-size FIFO set. When full, the oldest key is evicted.
type seenSet struct {
	keys  map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &seenSet{
		keys:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

// add inserts key and reports whether it was absent.
func (s *seenSet) add(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}

	if len(s.order) < cap(s.order) {
		s.order = append(s.order, key)
	} else {
		delete(s.keys, s.order[s.next])
		s.order[s.next] = key
		s.next = (s.next + 1) % len(s.order)
	}

	s.keys[key] = struct{}{}

	return true
}

func (s *seenSet) len() int {
	return len(s.keys)
}
