// Package store persists the set of tracked torrent descriptors as a JSON
// file. Persistence is best-effort: the in-memory set stays authoritative
// for the lifetime of the process, so every I/O failure here is swallowed.
package store

import (
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

type Kind string

const (
	KindFile   Kind = "file"
	KindMagnet Kind = "magnet"
)

// Descriptor is the minimal persisted record needed to re-create a torrent
// handle on restart.
type Descriptor struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
}

type state struct {
	Torrents []Descriptor `json:"torrents"`
}

type Store struct {
	path       string
	legacyPath string
}

// NewStore uses path as the current state file location and legacyPath as the
// pre-existing location consulted once for migration.
func NewStore(path string, legacyPath string) *Store {
	return &Store{
		path:       path,
		legacyPath: legacyPath,
	}
}

// Load reads the persisted descriptor set. If the current-location file is
// absent or unreadable it falls back to the legacy location, migrating its
// contents to the current location and deleting the legacy file. Any failure
// results in an empty list, never an error.
func (s *Store) Load() []Descriptor {
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		log.Debug().
			Err(err).
			Str("path", s.path).
			Msg("Could not create state directory")

		return []Descriptor{}
	}

	var st state
	if b, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(b, &st); err == nil {
			return valid(st.Torrents)
		}

		log.Debug().
			Str("path", s.path).
			Msg("Could not parse state file, trying legacy location")
	}

	b, err := os.ReadFile(s.legacyPath)
	if err != nil {
		return []Descriptor{}
	}

	st = state{}
	if err := json.Unmarshal(b, &st); err != nil {
		log.Debug().
			Err(err).
			Str("path", s.legacyPath).
			Msg("Could not parse legacy state file")

		return []Descriptor{}
	}

	// Rewrite to the current location before deleting the legacy file so a
	// failed delete can never lose descriptors.
	if err := s.write(st.Torrents); err != nil {
		log.Debug().
			Err(err).
			Str("path", s.path).
			Msg("Could not migrate legacy state file")

		return valid(st.Torrents)
	}

	if err := os.Remove(s.legacyPath); err != nil {
		log.Debug().
			Err(err).
			Str("path", s.legacyPath).
			Msg("Could not remove legacy state file")
	}

	return valid(st.Torrents)
}

// Save writes the full descriptor set to the current location, overwriting
// it. Failures are logged and swallowed.
func (s *Store) Save(descriptors []Descriptor) {
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		log.Error().
			Err(err).
			Str("path", s.path).
			Msg("Could not create state directory")

		return
	}

	if err := s.write(descriptors); err != nil {
		log.Error().
			Err(err).
			Str("path", s.path).
			Msg("Could not write state file")
	}
}

func (s *Store) write(descriptors []Descriptor) error {
	if descriptors == nil {
		descriptors = []Descriptor{}
	}

	b, err := json.MarshalIndent(state{Torrents: descriptors}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, b, 0o644)
}

func valid(descriptors []Descriptor) []Descriptor {
	out := []Descriptor{}
	for _, d := range descriptors {
		if d.Kind == "" || d.Source == "" {
			continue
		}

		out = append(out, d)
	}

	return out
}
