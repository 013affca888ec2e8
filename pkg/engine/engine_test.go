package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMagnet(t *testing.T) {
	for _, tt := range []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{
			name: "plain info hash",
			uri:  "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056",
		},
		{
			name: "with display name and trackers",
			uri:  "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056&dn=ubuntu.iso&tr=udp%3A%2F%2Ftracker.example.org%3A1337",
		},
		{
			name:    "empty",
			uri:     "",
			wantErr: true,
		},
		{
			name:    "missing scheme",
			uri:     "xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056",
			wantErr: true,
		},
		{
			name:    "missing xt parameter",
			uri:     "magnet:?dn=ubuntu.iso",
			wantErr: true,
		},
		{
			name:    "v2-only info hash",
			uri:     "magnet:?xt=urn:btmh:1220caf1e1c30e81cb2a0a9baa720f8e95cf7645b299079b4d1bcb19cdbdb6bb51e9",
			wantErr: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMagnet(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMagnetURI)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestAdapter(t *testing.T) *Adapter {
	a, err := NewAdapter(t.TempDir(), 0, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})

	return a
}

func TestAddTorrentFromMagnetRejectsV2OnlyURI(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.AddTorrentFromMagnet("magnet:?xt=urn:btmh:1220caf1e1c30e81cb2a0a9baa720f8e95cf7645b299079b4d1bcb19cdbdb6bb51e9")
	assert.ErrorIs(t, err, ErrInvalidMagnetURI)
}

func TestMagnetHandleIdentityBeforeMetadata(t *testing.T) {
	a := newTestAdapter(t)

	h, err := a.AddTorrentFromMagnet("magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056")
	require.NoError(t, err)

	assert.Equal(t, "c9e15763f722f23e98a29decdfae341b98d53056", h.Identity())

	// The handle stays resolvable before any metadata has arrived.
	raw, err := h.Status()
	require.NoError(t, err)
	assert.Equal(t, StateDownloadingMetadata, raw.State)
}

func writeTorrentFile(t *testing.T, info metainfo.Info) string {
	mi := metainfo.MetaInfo{
		InfoBytes: bencode.MustMarshal(info),
	}

	path := filepath.Join(t.TempDir(), "test.torrent")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, mi.Write(f))

	return path
}

func TestInspectMultiFileTorrent(t *testing.T) {
	path := writeTorrentFile(t, metainfo.Info{
		Name:        "bundle",
		PieceLength: 16384,
		Pieces:      make([]byte, 20),
		Files: []metainfo.FileInfo{
			{Path: []string{"a.txt"}, Length: 100},
			{Path: []string{"sub", "b.bin"}, Length: 200},
		},
	})

	name, files, err := Inspect(path)
	require.NoError(t, err)

	assert.Equal(t, "bundle", name)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Path)
	assert.Equal(t, int64(100), files[0].Length)
	assert.Equal(t, "sub/b.bin", files[1].Path)
	assert.Equal(t, int64(200), files[1].Length)
}

func TestInspectSingleFileTorrent(t *testing.T) {
	path := writeTorrentFile(t, metainfo.Info{
		Name:        "single.iso",
		PieceLength: 16384,
		Pieces:      make([]byte, 20),
		Length:      300,
	})

	name, files, err := Inspect(path)
	require.NoError(t, err)

	assert.Equal(t, "single.iso", name)
	require.Len(t, files, 1)
	assert.Equal(t, "single.iso", files[0].Path)
	assert.Equal(t, int64(300), files[0].Length)
}

func TestInspectRejectsUnreadableFile(t *testing.T) {
	_, _, err := Inspect(filepath.Join(t.TempDir(), "missing.torrent"))
	assert.ErrorIs(t, err, ErrInvalidTorrentFile)
}

func TestInspectRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.torrent")
	require.NoError(t, os.WriteFile(path, []byte("not bencode"), 0o644))

	_, _, err := Inspect(path)
	assert.ErrorIs(t, err, ErrInvalidTorrentFile)
}
