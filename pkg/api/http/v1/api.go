package v1

// TorrentStatus is the display-ready record for one tracked torrent,
// recomputed on every status query.
type TorrentStatus struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Progress     float64 `json:"progress"`
	DownloadRate float64 `json:"downloadRate"`
	UploadRate   float64 `json:"uploadRate"`
	State        string  `json:"state"`
	TotalSize    int64   `json:"totalSize"`
	Downloaded   int64   `json:"downloaded"`
	Peers        int     `json:"peers"`
	ETA          int64   `json:"eta"`
	Paused       bool    `json:"paused"`
	Seeding      bool    `json:"seeding"`
}

type Info struct {
	Name  string `json:"name"`
	Files []File `json:"files"`
}

type File struct {
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

type AddResponse struct {
	ID string `json:"id"`
}

type Descriptor struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Source string `json:"source"`
}
