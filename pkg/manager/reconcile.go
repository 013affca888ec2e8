package manager

import (
	v1 "github.com/Hila-dev/gtorrent/pkg/api/http/v1"
	"github.com/Hila-dev/gtorrent/pkg/engine"
)

// Transfers below this rate while partially complete are shown as resuming;
// the engine has no dedicated stalled state.
const resumingRateThreshold = 50 * 1024

const namePlaceholder = "(metadata...)"

var stateLabels = map[engine.RawState]string{
	engine.StateQueued:              "Queued",
	engine.StateChecking:            "Checking",
	engine.StateDownloadingMetadata: "Downloading metadata",
	engine.StateDownloading:         "Downloading",
	engine.StateFinished:            "Finished",
	engine.StateSeeding:             "Seeding",
	engine.StateAllocating:          "Allocating",
	engine.StateCheckingFastResume:  "Checking fastresume",
}

// Reconcile turns one raw engine status into the display-ready record. It is
// a pure function; all engine-call failures are handled by the caller before
// it runs.
func Reconcile(id string, raw engine.RawStatus) v1.TorrentStatus {
	totalSize := raw.TotalWanted
	if len(raw.FilePriorities) > 0 && len(raw.FilePriorities) == len(raw.FileSizes) {
		var sum int64
		for i, prio := range raw.FilePriorities {
			if prio > 0 {
				sum += raw.FileSizes[i]
			}
		}

		if sum > 0 {
			totalSize = sum
		}
	}

	remaining := totalSize - raw.TotalDone
	if remaining < 0 {
		remaining = 0
	}

	eta := int64(-1)
	if raw.DownloadRate > 0 && remaining > 0 {
		eta = int64(float64(remaining) / raw.DownloadRate)
	}

	state, ok := stateLabels[raw.State]
	if !ok {
		state = "Unknown"
	}

	switch {
	case raw.Paused:
		state = "Paused"
	case raw.Seeding:
		state = "Seeding"
	case raw.Progress > 0 && raw.Progress < 1 && raw.DownloadRate < resumingRateThreshold:
		state = "Resuming"
	}

	name := raw.Name
	if name == "" {
		name = namePlaceholder
	}

	return v1.TorrentStatus{
		ID:           id,
		Name:         name,
		Progress:     raw.Progress,
		DownloadRate: raw.DownloadRate,
		UploadRate:   raw.UploadRate,
		State:        state,
		TotalSize:    totalSize,
		Downloaded:   raw.TotalDone,
		Peers:        raw.Peers,
		ETA:          eta,
		Paused:       raw.Paused,
		Seeding:      raw.Seeding,
	}
}
