package navigate

import "slices"

// Pointer is one pressed pointer in a polled input snapshot.
type Pointer struct {
	ID   int
	X, Y float64
}

// Poller derives pointer events from successive snapshots of the pressed
// pointers, for toolkits that expose input state instead of input events.
// Releases come first, then moves, then presses.
type Poller struct {
	last map[int]point
}

// Diff compares pressed with the previous snapshot and returns the events in between.
func (p *Poller) Diff(pressed []Pointer) []Event {
	if p.last == nil {
		p.last = make(map[int]point, 2)
	}
	var ups []int
	for id := range p.last {
		if !slices.ContainsFunc(pressed, func(q Pointer) bool { return q.ID == id }) {
			ups = append(ups, id)
		}
	}
	slices.Sort(ups)

	var events, downs []Event
	for _, id := range ups {
		delete(p.last, id)
		events = append(events, PointerUp{ID: id})
	}
	for _, q := range pressed {
		cur := point{q.X, q.Y}
		prev, ok := p.last[q.ID]
		p.last[q.ID] = cur
		switch {
		case !ok:
			downs = append(downs, PointerDown{ID: q.ID, X: q.X, Y: q.Y})
		case prev != cur:
			events = append(events, PointerMove{ID: q.ID, X: q.X, Y: q.Y})
		}
	}
	return append(events, downs...)
}

// Offer delivers ev on out without blocking and reports whether it was taken.
// Input callbacks run on the UI thread and must drop events rather than wait
// for a consumer that is itself waiting on that thread.
func Offer(out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	default:
		return false
	}
}
