// Package manager owns the mapping from stable torrent identifiers to engine
// handles. It reconciles live engine status into display records on every
// query and drives descriptor persistence.
package manager

import (
	"errors"
	"sync"

	v1 "github.com/Hila-dev/gtorrent/pkg/api/http/v1"
	"github.com/Hila-dev/gtorrent/pkg/engine"
	"github.com/Hila-dev/gtorrent/pkg/store"
	"github.com/rs/zerolog/log"
)

type entry struct {
	handle     engine.Handle
	descriptor store.Descriptor
}

type Manager struct {
	session engine.Session
	store   *store.Store

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// NewManager wraps the given engine session. The session is owned by the
// manager for its entire lifetime.
func NewManager(session engine.Session, store *store.Store) *Manager {
	return &Manager{
		session: session,
		store:   store,
		entries: map[string]*entry{},
	}
}

// Rehydrate re-adds every persisted descriptor through the engine session.
// Descriptors that fail to re-add are skipped; they stay out of the live set
// until the user adds them again.
func (m *Manager) Rehydrate() {
	for _, d := range m.store.Load() {
		var err error
		switch d.Kind {
		case store.KindFile:
			_, err = m.AddFromFile(d.Source, nil)
		case store.KindMagnet:
			_, err = m.AddFromMagnet(d.Source)
		}

		if err != nil {
			log.Warn().
				Err(err).
				Str("source", d.Source).
				Msg("Could not restore torrent")
		}
	}
}

// AddFromFile parses a torrent file and starts downloading it. The optional
// filePriorities list marks which files to fetch; a nil list fetches all.
func (m *Manager) AddFromFile(path string, filePriorities []int) (string, error) {
	handle, err := m.session.AddTorrentFromFile(path, filePriorities)
	if err != nil {
		return "", err
	}

	return m.track(handle, store.Descriptor{
		Kind:   store.KindFile,
		Source: path,
	}), nil
}

// AddFromMagnet starts downloading from a magnet URI. Metadata may not be
// available yet; status queries report a placeholder name until it is.
func (m *Manager) AddFromMagnet(uri string) (string, error) {
	handle, err := m.session.AddTorrentFromMagnet(uri)
	if err != nil {
		return "", err
	}

	return m.track(handle, store.Descriptor{
		Kind:   store.KindMagnet,
		Source: uri,
	}), nil
}

func (m *Manager) track(handle engine.Handle, descriptor store.Descriptor) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := handle.Identity()
	descriptor.ID = id

	if _, ok := m.entries[id]; !ok {
		m.order = append(m.order, id)
	}
	m.entries[id] = &entry{
		handle:     handle,
		descriptor: descriptor,
	}

	m.saveLocked()

	return id
}

// Pause stops transfers for the given torrent. Unknown ids and engine
// failures are no-ops; the true state is re-derived on the next poll.
func (m *Manager) Pause(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		if err := e.handle.Pause(); err != nil {
			log.Debug().
				Err(err).
				Str("id", id).
				Msg("Could not pause torrent")
		}
	}

	m.saveLocked()
}

// Resume restarts transfers for the given torrent. Unknown ids and engine
// failures are no-ops.
func (m *Manager) Resume(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		if err := e.handle.Resume(); err != nil {
			log.Debug().
				Err(err).
				Str("id", id).
				Msg("Could not resume torrent")
		}
	}
}

// Remove detaches the torrent from the tracked set unconditionally, even if
// the engine call fails. With deleteFiles the engine also removes downloaded
// data, when it supports that.
func (m *Manager) Remove(id string, deleteFiles bool) {
	m.mu.Lock()

	e, ok := m.entries[id]
	if ok {
		m.dropLocked(id)
	}

	m.saveLocked()
	m.mu.Unlock()

	if !ok {
		return
	}

	if deleteFiles && !m.session.SupportsDeleteFiles() {
		deleteFiles = false
	}

	if err := m.session.Remove(e.handle, deleteFiles); err != nil {
		log.Debug().
			Err(err).
			Str("id", id).
			Msg("Could not remove torrent from session")
	}
}

// ListStatus queries the engine for every tracked torrent and returns the
// reconciled snapshots in insertion order. Handles the engine no longer
// knows about are evicted from the live set; their descriptors stay
// persisted since they model the intent to keep downloading.
func (m *Manager) ListStatus() []v1.TorrentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := []v1.TorrentStatus{}
	invalidated := []string{}
	for _, id := range m.order {
		e := m.entries[id]

		raw, err := e.handle.Status()
		if err != nil {
			if errors.Is(err, engine.ErrHandleInvalidated) {
				invalidated = append(invalidated, id)

				continue
			}

			log.Debug().
				Err(err).
				Str("id", id).
				Msg("Could not query torrent status")

			continue
		}

		statuses = append(statuses, Reconcile(id, raw))
	}

	for _, id := range invalidated {
		m.dropLocked(id)

		log.Debug().
			Str("id", id).
			Msg("Evicted invalidated torrent handle")
	}

	return statuses
}

// Descriptors returns the persisted add-source of every tracked torrent in
// insertion order, so the set can be exported and re-added elsewhere.
func (m *Manager) Descriptors() []v1.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	descriptors := make([]v1.Descriptor, 0, len(m.order))
	for _, id := range m.order {
		d := m.entries[id].descriptor
		descriptors = append(descriptors, v1.Descriptor{
			ID:     d.ID,
			Kind:   string(d.Kind),
			Source: d.Source,
		})
	}

	return descriptors
}

// Close pauses every tracked torrent best-effort and persists final state.
// No descriptors are removed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if err := e.handle.Pause(); err != nil {
			log.Debug().
				Err(err).
				Str("id", id).
				Msg("Could not pause torrent on close")
		}
	}

	m.saveLocked()
}

func (m *Manager) dropLocked(id string) {
	delete(m.entries, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)

			break
		}
	}
}

func (m *Manager) saveLocked() {
	descriptors := make([]store.Descriptor, 0, len(m.order))
	for _, id := range m.order {
		descriptors = append(descriptors, m.entries[id].descriptor)
	}

	m.store.Save(descriptors)
}
