// Package bridge defines the push contract between the monitoring engine
// and an optional host shell summary view.
package bridge

// ItemStatus is the per-item status shown by a host shell.
type ItemStatus int

const (
	StatusUnknown ItemStatus = iota
	StatusSucceeded
	StatusFailed
)

func (s ItemStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DataSource is an index-addressable view of the monitored items.
// SelectItem is invoked by the shell, never by the engine.
type DataSource interface {
	ItemCount() int
	Name(item int) string
	Status(item int) ItemStatus
	SelectItem(item int)
}

// Listener receives the current view after every state or collection change.
type Listener interface {
	StatusChanged(src DataSource, passing bool)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(src DataSource, passing bool)

// StatusChanged calls f(src, passing).
func (f ListenerFunc) StatusChanged(src DataSource, passing bool) {
	f(src, passing)
}

// Item is one row of a Snapshot.
type Item struct {
	Name   string
	Status ItemStatus
}

// Snapshot is an immutable DataSource captured at notification time.
type Snapshot struct {
	items    []Item
	onSelect func(item int)
}

// NewSnapshot copies items. onSelect may be nil.
func NewSnapshot(items []Item, onSelect func(item int)) *Snapshot {
	cp := make([]Item, len(items))
	copy(cp, items)

	return &Snapshot{items: cp, onSelect: onSelect}
}

func (s *Snapshot) ItemCount() int {
	return len(s.items)
}

// Name returns the display name of item, or "" when out of range.
func (s *Snapshot) Name(item int) string {
	if item < 0 || item >= len(s.items) {
		return ""
	}

	return s.items[item].Name
}

// Status returns the status of item, or StatusUnknown when out of range.
func (s *Snapshot) Status(item int) ItemStatus {
	if item < 0 || item >= len(s.items) {
		return StatusUnknown
	}

	return s.items[item].Status
}

// SelectItem forwards in-range selections to the select handler.
func (s *Snapshot) SelectItem(item int) {
	if item < 0 || item >= len(s.items) || s.onSelect == nil {
		return
	}

	s.onSelect(item)
}

// Items returns a copy of the rows.
func (s *Snapshot) Items() []Item {
	cp := make([]Item, len(s.items))
	copy(cp, s.items)

	return cp
}

// Passing reports whether no item has failed.
func Passing(src DataSource) bool {
	for i := range src.ItemCount() {
		if src.Status(i) == StatusFailed {
			return false
		}
	}

	return true
}
