package manager

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	v1 "github.com/Hila-dev/gtorrent/pkg/api/http/v1"
	"github.com/Hila-dev/gtorrent/pkg/engine"
	"github.com/Hila-dev/gtorrent/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id        string
	raw       engine.RawStatus
	statusErr error

	pauses  int
	resumes int
}

func (h *fakeHandle) Identity() string {
	return h.id
}

func (h *fakeHandle) Status() (engine.RawStatus, error) {
	if h.statusErr != nil {
		return engine.RawStatus{}, h.statusErr
	}

	return h.raw, nil
}

func (h *fakeHandle) Pause() error {
	h.pauses++

	return nil
}

func (h *fakeHandle) Resume() error {
	h.resumes++

	return nil
}

type removal struct {
	handle      engine.Handle
	deleteFiles bool
}

type fakeSession struct {
	handles map[string]*fakeHandle

	supportsDeleteFiles bool
	removals            []removal
}

func newFakeSession(handles ...*fakeHandle) *fakeSession {
	s := &fakeSession{
		handles:             map[string]*fakeHandle{},
		supportsDeleteFiles: true,
	}
	for _, h := range handles {
		s.handles[h.id] = h
	}

	return s
}

func (s *fakeSession) add(source string) (engine.Handle, error) {
	if h, ok := s.handles[source]; ok {
		return h, nil
	}

	return nil, engine.ErrInvalidTorrentFile
}

func (s *fakeSession) AddTorrentFromFile(path string, filePriorities []int) (engine.Handle, error) {
	return s.add(path)
}

func (s *fakeSession) AddTorrentFromMagnet(uri string) (engine.Handle, error) {
	return s.add(uri)
}

func (s *fakeSession) Remove(handle engine.Handle, deleteFiles bool) error {
	s.removals = append(s.removals, removal{handle: handle, deleteFiles: deleteFiles})

	return nil
}

func (s *fakeSession) SupportsDeleteFiles() bool {
	return s.supportsDeleteFiles
}

func (s *fakeSession) Close() error {
	return nil
}

func testManager(t *testing.T, session engine.Session) (*Manager, *store.Store) {
	dir := t.TempDir()
	st := store.NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "legacy.json"))

	return NewManager(session, st), st
}

func TestAddFromMagnetTracksUntilRemoved(t *testing.T) {
	h := &fakeHandle{id: "abc", raw: engine.RawStatus{Name: "ubuntu.iso"}}
	session := newFakeSession(h)
	session.handles["magnet:?xt=urn:btih:abc"] = h

	m, st := testManager(t, session)

	id, err := m.AddFromMagnet("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	statuses := m.ListStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, "abc", statuses[0].ID)
	assert.Equal(t, "ubuntu.iso", statuses[0].Name)

	persisted := st.Load()
	require.Len(t, persisted, 1)
	assert.Equal(t, store.KindMagnet, persisted[0].Kind)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", persisted[0].Source)

	m.Remove(id, false)

	assert.Empty(t, m.ListStatus())
	assert.Empty(t, st.Load())
}

func TestAddFromFileSurfacesInvalidInput(t *testing.T) {
	m, st := testManager(t, newFakeSession())

	_, err := m.AddFromFile("/does/not/exist.torrent", nil)
	require.ErrorIs(t, err, engine.ErrInvalidTorrentFile)

	assert.Empty(t, m.ListStatus())
	assert.Empty(t, st.Load())
}

func TestRemoveFallsBackWhenDeleteFilesUnsupported(t *testing.T) {
	h := &fakeHandle{id: "abc"}
	session := newFakeSession(h)
	session.handles["/tmp/a.torrent"] = h
	session.supportsDeleteFiles = false

	m, _ := testManager(t, session)

	_, err := m.AddFromFile("/tmp/a.torrent", nil)
	require.NoError(t, err)

	m.Remove("abc", true)

	require.Len(t, session.removals, 1)
	assert.False(t, session.removals[0].deleteFiles)
}

func TestRemoveUnknownIDIsANoOp(t *testing.T) {
	session := newFakeSession()
	m, _ := testManager(t, session)

	m.Remove("missing", true)

	assert.Empty(t, session.removals)
}

func TestPauseUnknownIDDoesNotAlterPersistedState(t *testing.T) {
	h := &fakeHandle{id: "abc"}
	session := newFakeSession(h)
	session.handles["magnet:?xt=urn:btih:abc"] = h

	m, st := testManager(t, session)

	_, err := m.AddFromMagnet("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)

	before := st.Load()

	m.Pause("missing")

	assert.Equal(t, before, st.Load())
}

func TestPauseAndResumeReachTheHandle(t *testing.T) {
	h := &fakeHandle{id: "abc"}
	session := newFakeSession(h)
	session.handles["magnet:?xt=urn:btih:abc"] = h

	m, _ := testManager(t, session)

	_, err := m.AddFromMagnet("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)

	m.Pause("abc")
	m.Resume("abc")

	assert.Equal(t, 1, h.pauses)
	assert.Equal(t, 1, h.resumes)
}

func TestResumeDoesNotPersist(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")

	h := &fakeHandle{id: "abc"}
	session := newFakeSession(h)
	session.handles["magnet:?xt=urn:btih:abc"] = h

	m := NewManager(session, store.NewStore(statePath, filepath.Join(dir, "legacy.json")))

	_, err := m.AddFromMagnet("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)

	require.NoError(t, os.Remove(statePath))

	m.Resume("abc")

	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Fatal("resume should not have written the state file")
	}
}

func TestListStatusEvictsInvalidatedHandles(t *testing.T) {
	h := &fakeHandle{id: "abc"}
	session := newFakeSession(h)
	session.handles["magnet:?xt=urn:btih:abc"] = h

	m, st := testManager(t, session)

	_, err := m.AddFromMagnet("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)

	h.statusErr = engine.ErrHandleInvalidated

	assert.Empty(t, m.ListStatus())
	assert.Empty(t, m.ListStatus())

	// Eviction is runtime cleanup only; the descriptor still models the
	// intent to download.
	persisted := st.Load()
	require.Len(t, persisted, 1)
	assert.Equal(t, "abc", persisted[0].ID)
}

func TestListStatusKeepsEntriesOnTransientStatusFailure(t *testing.T) {
	h := &fakeHandle{id: "abc"}
	session := newFakeSession(h)
	session.handles["magnet:?xt=urn:btih:abc"] = h

	m, _ := testManager(t, session)

	_, err := m.AddFromMagnet("magnet:?xt=urn:btih:abc")
	require.NoError(t, err)

	h.statusErr = errors.New("transient")
	assert.Empty(t, m.ListStatus())

	h.statusErr = nil
	assert.Len(t, m.ListStatus(), 1)
}

func TestListStatusPreservesInsertionOrder(t *testing.T) {
	first := &fakeHandle{id: "first"}
	second := &fakeHandle{id: "second"}
	third := &fakeHandle{id: "third"}

	session := newFakeSession()
	session.handles["magnet:?xt=urn:btih:first"] = first
	session.handles["magnet:?xt=urn:btih:second"] = second
	session.handles["magnet:?xt=urn:btih:third"] = third

	m, _ := testManager(t, session)

	for _, uri := range []string{
		"magnet:?xt=urn:btih:first",
		"magnet:?xt=urn:btih:second",
		"magnet:?xt=urn:btih:third",
	} {
		_, err := m.AddFromMagnet(uri)
		require.NoError(t, err)
	}

	ids := []string{}
	for _, s := range m.ListStatus() {
		ids = append(ids, s.ID)
	}

	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestClosePausesAllAndKeepsDescriptors(t *testing.T) {
	a := &fakeHandle{id: "a"}
	b := &fakeHandle{id: "b"}

	session := newFakeSession()
	session.handles["magnet:?xt=urn:btih:a"] = a
	session.handles["magnet:?xt=urn:btih:b"] = b

	m, st := testManager(t, session)

	for _, uri := range []string{"magnet:?xt=urn:btih:a", "magnet:?xt=urn:btih:b"} {
		_, err := m.AddFromMagnet(uri)
		require.NoError(t, err)
	}

	m.Close()

	assert.Equal(t, 1, a.pauses)
	assert.Equal(t, 1, b.pauses)
	assert.Len(t, st.Load(), 2)
}

func TestRehydrateReAddsPersistedDescriptors(t *testing.T) {
	dir := t.TempDir()
	st := store.NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "legacy.json"))
	st.Save([]store.Descriptor{
		{ID: "a", Kind: store.KindMagnet, Source: "magnet:?xt=urn:btih:a"},
		{ID: "gone", Kind: store.KindFile, Source: "/no/longer/exists.torrent"},
		{ID: "b", Kind: store.KindFile, Source: "/tmp/b.torrent"},
	})

	a := &fakeHandle{id: "a"}
	b := &fakeHandle{id: "b"}
	session := newFakeSession()
	session.handles["magnet:?xt=urn:btih:a"] = a
	session.handles["/tmp/b.torrent"] = b

	m := NewManager(session, st)
	m.Rehydrate()

	ids := []string{}
	for _, s := range m.ListStatus() {
		ids = append(ids, s.ID)
	}

	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestDescriptorsExportTrackedSources(t *testing.T) {
	hFile := &fakeHandle{id: "abc"}
	hMagnet := &fakeHandle{id: "def"}
	session := newFakeSession()
	session.handles["/tmp/ubuntu.torrent"] = hFile
	session.handles["magnet:?xt=urn:btih:def"] = hMagnet

	m, _ := testManager(t, session)

	_, err := m.AddFromFile("/tmp/ubuntu.torrent", nil)
	require.NoError(t, err)
	_, err = m.AddFromMagnet("magnet:?xt=urn:btih:def")
	require.NoError(t, err)

	descriptors := m.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, v1.Descriptor{ID: "abc", Kind: "file", Source: "/tmp/ubuntu.torrent"}, descriptors[0])
	assert.Equal(t, v1.Descriptor{ID: "def", Kind: "magnet", Source: "magnet:?xt=urn:btih:def"}, descriptors[1])

	m.Remove("abc", false)

	descriptors = m.Descriptors()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "def", descriptors[0].ID)
}
