// Package engine wraps the anacrolix/torrent client behind the narrow,
// error-tolerant session and handle interfaces the manager relies on. The
// manager never talks to the torrent library directly, which keeps it
// testable with in-memory doubles.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/phayes/freeport"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTorrentFile = errors.New("could not parse torrent file")
	ErrInvalidMagnetURI   = errors.New("could not parse magnet link")
	ErrHandleInvalidated  = errors.New("could not find torrent in session")
)

// RawState mirrors the engine's coarse per-torrent state enumeration.
type RawState int

const (
	StateQueued RawState = iota
	StateChecking
	StateDownloadingMetadata
	StateDownloading
	StateFinished
	StateSeeding
	StateAllocating
	StateCheckingFastResume
)

// RawStatus is one status query's worth of raw engine signals for a single
// handle. The reconciler derives the display record from it.
type RawStatus struct {
	Name           string
	State          RawState
	Progress       float64
	DownloadRate   float64
	UploadRate     float64
	TotalWanted    int64
	TotalDone      int64
	Peers          int
	Paused         bool
	Seeding        bool
	FileSizes      []int64
	FilePriorities []int
}

// Handle identifies one in-progress or completed torrent inside the session.
type Handle interface {
	Identity() string
	Status() (RawStatus, error)
	Pause() error
	Resume() error
}

// Session is the boundary to the external torrent engine. All calls may fail
// transiently; callers are expected to swallow everything except the two
// invalid-input errors from the add operations.
type Session interface {
	AddTorrentFromFile(path string, filePriorities []int) (Handle, error)
	AddTorrentFromMagnet(uri string) (Handle, error)
	Remove(handle Handle, deleteFiles bool) error
	SupportsDeleteFiles() bool
	Close() error
}

type Adapter struct {
	client  *torrent.Client
	dataDir string
}

// NewAdapter starts a torrent client rooted at dataDir. If port is 0 a free
// listen port is picked.
func NewAdapter(dataDir string, port int, debug bool) (*Adapter, error) {
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		return nil, err
	}

	if port == 0 {
		p, err := freeport.GetFreePort()
		if err != nil {
			return nil, err
		}
		port = p
	}

	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	cfg.Seed = true
	cfg.ListenPort = port
	cfg.Debug = debug

	c, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("dataDir", dataDir).
		Int("port", port).
		Msg("Started torrent session")

	return &Adapter{
		client:  c,
		dataDir: dataDir,
	}, nil
}

func (a *Adapter) AddTorrentFromFile(path string, filePriorities []int) (Handle, error) {
	t, err := a.client.AddTorrentFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTorrentFile, err)
	}

	files := t.Files()
	if filePriorities != nil && len(filePriorities) == len(files) {
		for i, f := range files {
			if filePriorities[i] > 0 {
				f.SetPriority(torrent.PiecePriorityNormal)
			} else {
				f.SetPriority(torrent.PiecePriorityNone)
			}
		}
	} else {
		t.DownloadAll()
	}

	return a.newHandle(t), nil
}

func (a *Adapter) AddTorrentFromMagnet(uri string) (Handle, error) {
	if err := validateMagnet(uri); err != nil {
		return nil, err
	}

	t, err := a.client.AddMagnet(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMagnetURI, err)
	}

	h := a.newHandle(t)

	go func() {
		<-t.GotInfo()

		h.mu.Lock()
		paused := h.paused
		h.mu.Unlock()

		if !paused {
			t.DownloadAll()
		}
	}()

	return h, nil
}

func (a *Adapter) Remove(handle Handle, deleteFiles bool) error {
	h, ok := handle.(*torrentHandle)
	if !ok {
		return ErrHandleInvalidated
	}

	// Collect file paths before dropping the handle; afterwards the info is
	// no longer reachable.
	paths := []string{}
	if deleteFiles && h.t.Info() != nil {
		for _, f := range h.t.Files() {
			paths = append(paths, filepath.Join(a.dataDir, filepath.FromSlash(f.Path())))
		}
	}

	h.t.Drop()

	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			log.Debug().
				Err(err).
				Str("path", p).
				Msg("Could not delete downloaded file")
		}
	}

	return nil
}

func (a *Adapter) SupportsDeleteFiles() bool {
	return true
}

func (a *Adapter) Close() error {
	errs := a.client.Close()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

type torrentHandle struct {
	t      *torrent.Torrent
	client *torrent.Client
	id     string

	mu         sync.Mutex
	paused     bool
	lastSample time.Time
	lastRead   int64
	lastWrite  int64
	downRate   float64
	upRate     float64
}

func (a *Adapter) newHandle(t *torrent.Torrent) *torrentHandle {
	// Both add paths guarantee a v1 info hash, so the identity is always
	// derivable, even before metadata arrives.
	return &torrentHandle{
		t:      t,
		client: a.client,
		id:     t.InfoHash().HexString(),
	}
}

func (h *torrentHandle) Identity() string {
	return h.id
}

func (h *torrentHandle) Status() (RawStatus, error) {
	if _, ok := h.client.Torrent(h.t.InfoHash()); !ok {
		return RawStatus{}, ErrHandleInvalidated
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	stats := h.t.Stats()

	raw := RawStatus{
		Name:   h.t.Name(),
		State:  StateDownloadingMetadata,
		Peers:  len(h.t.PeerConns()),
		Paused: h.paused,
	}

	now := time.Now()
	read, write := stats.BytesReadUsefulData.Int64(), stats.BytesWrittenData.Int64()
	if !h.lastSample.IsZero() {
		if elapsed := now.Sub(h.lastSample).Seconds(); elapsed > 0 {
			h.downRate = float64(read-h.lastRead) / elapsed
			h.upRate = float64(write-h.lastWrite) / elapsed
		}
	}
	h.lastSample = now
	h.lastRead = read
	h.lastWrite = write
	raw.DownloadRate = h.downRate
	raw.UploadRate = h.upRate

	if h.t.Info() == nil {
		return raw, nil
	}

	raw.TotalWanted = h.t.Length()
	raw.TotalDone = h.t.BytesCompleted()
	if raw.TotalWanted > 0 {
		raw.Progress = float64(raw.TotalDone) / float64(raw.TotalWanted)
	}

	files := h.t.Files()
	raw.FileSizes = make([]int64, 0, len(files))
	raw.FilePriorities = make([]int, 0, len(files))
	for _, f := range files {
		raw.FileSizes = append(raw.FileSizes, f.Length())
		raw.FilePriorities = append(raw.FilePriorities, int(f.Priority()))
	}

	switch {
	case h.t.BytesMissing() > 0:
		raw.State = StateDownloading
	case h.t.Seeding():
		raw.State = StateSeeding
		raw.Seeding = true
	default:
		raw.State = StateFinished
	}

	return raw, nil
}

func (h *torrentHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.t.DisallowDataDownload()
	h.t.DisallowDataUpload()
	h.paused = true

	return nil
}

func (h *torrentHandle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.t.AllowDataDownload()
	h.t.AllowDataUpload()
	h.paused = false

	return nil
}

// FileEntry is one file inside a torrent, as reported by Inspect.
type FileEntry struct {
	Path   string
	Length int64
}

// Inspect parses a torrent file without adding it to the session, returning
// its name and per-file sizes so a caller can pick file priorities up front.
func Inspect(path string) (string, []FileEntry, error) {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidTorrentFile, err)
	}

	info, err := mi.UnmarshalInfo()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidTorrentFile, err)
	}

	files := []FileEntry{}
	for _, f := range info.UpvertedFiles() {
		files = append(files, FileEntry{
			Path:   f.DisplayPath(&info),
			Length: f.Length,
		})
	}

	return info.BestName(), files, nil
}

func validateMagnet(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return fmt.Errorf("%w: empty magnet URI", ErrInvalidMagnetURI)
	}

	m, err := metainfo.ParseMagnetUri(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMagnetURI, err)
	}

	// The session addresses torrents by their v1 info hash; a v2-only magnet
	// carries none and the engine cannot track it.
	if m.InfoHash == (metainfo.Hash{}) {
		return fmt.Errorf("%w: missing v1 info hash", ErrInvalidMagnetURI)
	}

	return nil
}
