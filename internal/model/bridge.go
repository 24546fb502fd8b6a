package model

import (
	"github.com/google/uuid"
	"github.com/kyleking/gh-actionstatus/internal/bridge"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// Subscribe registers l for status notifications and immediately sends it the
// current view. The returned function unsubscribes. Listeners are called one
// at a time and must not mutate the model synchronously.
func (m *Model) Subscribe(l bridge.Listener) func() {
	m.listenersMu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, subscription{id: id, listener: l})
	m.listenersMu.Unlock()

	m.notifyMu.Lock()
	snap := m.Snapshot()
	l.StatusChanged(snap, bridge.Passing(snap))
	m.notifyMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()

		for i, sub := range m.listeners {
			if sub.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Snapshot captures the index-addressable view of the collection. Selecting an
// item runs the OnSelect handler for the repo that was at that index.
func (m *Model) Snapshot() *bridge.Snapshot {
	m.mu.RLock()
	items := make([]bridge.Item, len(m.items))
	ids := make([]uuid.UUID, len(m.items))

	for i, r := range m.items {
		items[i] = bridge.Item{Name: r.Name, Status: itemStatus(r.State)}
		ids[i] = r.ID
	}
	m.mu.RUnlock()

	return bridge.NewSnapshot(items, func(item int) {
		m.selectRepo(ids[item])
	})
}

func (m *Model) selectRepo(id uuid.UUID) {
	r, ok := m.Repo(id)
	if !ok {
		m.logger.Debug("selected repo no longer exists", "id", id)
		return
	}

	if m.opts.OnSelect != nil {
		m.opts.OnSelect(r)
	}
}

// notify pushes a fresh snapshot to every listener. The snapshot is taken while
// holding notifyMu so listeners always end on the latest state.
func (m *Model) notify() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.listenersMu.RLock()
	listeners := make([]bridge.Listener, len(m.listeners))
	for i, sub := range m.listeners {
		listeners[i] = sub.listener
	}
	m.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	snap := m.Snapshot()
	passing := bridge.Passing(snap)

	for _, l := range listeners {
		l.StatusChanged(snap, passing)
	}
}

type subscription struct {
	id       int
	listener bridge.Listener
}

func itemStatus(s repo.State) bridge.ItemStatus {
	switch s {
	case repo.StatePassing:
		return bridge.StatusSucceeded
	case repo.StateFailing:
		return bridge.StatusFailed
	default:
		return bridge.StatusUnknown
	}
}
