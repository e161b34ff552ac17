package outbox

import (
	"cmp"
	"slices"
	"time"
)

type scheduled struct {
	item Item
	seq  uint64
}

// schedule holds items until their NotBefore. Items are grouped in lanes by
// conversation; only the head of a lane can become due, so a delayed message
// is never overtaken by a later one of the same conversation.
type schedule struct {
	lanes map[string][]scheduled
	seq   uint64
	count int
}

func bySeq(a, b scheduled) int {
	return cmp.Compare(a.seq, b.seq)
}

func newSchedule() *schedule {
	return &schedule{lanes: make(map[string][]scheduled)}
}

func laneKey(item Item) string {
	switch {
	case item.ConversationID != "":
		return "conversation:" + item.ConversationID
	case item.Phone != "":
		return "phone:" + item.Phone
	default:
		return "message:" + item.MessageID
	}
}

func (s *schedule) add(item Item) {
	s.seq++
	key := laneKey(item)
	s.lanes[key] = append(s.lanes[key], scheduled{item: item, seq: s.seq})
	s.count++
}

func (s *schedule) len() int {
	return s.count
}

// next returns the earliest NotBefore among lane heads.
func (s *schedule) next() (time.Time, bool) {
	var (
		earliest time.Time
		found    bool
	)

	for _, lane := range s.lanes {
		at := lane[0].item.NotBefore
		if !found || at.Before(earliest) {
			earliest = at
			found = true
		}
	}

	return earliest, found
}

// due removes and returns, in arrival order, the items that can be sent at now.
func (s *schedule) due(now time.Time) []Item {
	var ready []scheduled

	for key, lane := range s.lanes {
		n := 0
		for n < len(lane) && !lane[n].item.NotBefore.After(now) {
			n++
		}

		if n == 0 {
			continue
		}

		ready = append(ready, lane[:n]...)

		if n == len(lane) {
			delete(s.lanes, key)
		} else {
			s.lanes[key] = lane[n:]
		}
	}

	slices.SortFunc(ready, bySeq)

	items := make([]Item, len(ready))
	for i, entry := range ready {
		items[i] = entry.item
	}

	s.count -= len(items)

	return items
}

// drain removes every held item, in arrival order.
func (s *schedule) drain() []Item {
	var all []scheduled
	for _, lane := range s.lanes {
		all = append(all, lane...)
	}

	slices.SortFunc(all, bySeq)

	items := make([]Item, len(all))
	for i, entry := range all {
		items[i] = entry.item
	}

	clear(s.lanes)
	s.count = 0

	return items
}
