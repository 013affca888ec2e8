package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	v1 "github.com/Hila-dev/gtorrent/pkg/api/http/v1"
	jsoniter "github.com/json-iterator/go"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// Manager calls a running daemon's HTTP API on behalf of the CLI.
type Manager struct {
	url      string
	username string
	password string
	ctx      context.Context
}

func NewManager(
	url string,
	username string,
	password string,
	ctx context.Context,
) *Manager {
	return &Manager{
		url:      url,
		username: username,
		password: password,
		ctx:      ctx,
	}
}

func (m *Manager) request(method string, ref string, query url.Values) (*http.Response, error) {
	baseURL, err := url.Parse(m.url)
	if err != nil {
		return nil, err
	}

	suffix, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}

	u := baseURL.ResolveReference(suffix)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(m.ctx, method, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(m.username, m.password)

	hc := &http.Client{}

	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		if res.Body != nil {
			_ = res.Body.Close()
		}

		return nil, errors.New(res.Status)
	}

	return res, nil
}

func (m *Manager) GetStatus() ([]v1.TorrentStatus, error) {
	res, err := m.request(http.MethodGet, "/status", url.Values{})
	if err != nil {
		return []v1.TorrentStatus{}, err
	}
	defer res.Body.Close()

	statuses := []v1.TorrentStatus{}
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&statuses); err != nil {
		return []v1.TorrentStatus{}, err
	}

	return statuses, nil
}

func (m *Manager) GetDescriptors() ([]v1.Descriptor, error) {
	res, err := m.request(http.MethodGet, "/descriptors", url.Values{})
	if err != nil {
		return []v1.Descriptor{}, err
	}
	defer res.Body.Close()

	descriptors := []v1.Descriptor{}
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&descriptors); err != nil {
		return []v1.Descriptor{}, err
	}

	return descriptors, nil
}

func (m *Manager) Inspect(path string) (v1.Info, error) {
	q := url.Values{}
	q.Set("path", path)

	res, err := m.request(http.MethodGet, "/inspect", q)
	if err != nil {
		return v1.Info{}, err
	}
	defer res.Body.Close()

	info := v1.Info{}
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&info); err != nil {
		return v1.Info{}, err
	}

	return info, nil
}

func (m *Manager) AddMagnet(uri string) (string, error) {
	q := url.Values{}
	q.Set("magnet", uri)

	return m.add(q)
}

func (m *Manager) AddFile(path string, filePriorities []int) (string, error) {
	q := url.Values{}
	q.Set("file", path)
	if filePriorities != nil {
		parts := make([]string, 0, len(filePriorities))
		for _, p := range filePriorities {
			parts = append(parts, strconv.Itoa(p))
		}
		q.Set("priorities", strings.Join(parts, ","))
	}

	return m.add(q)
}

func (m *Manager) add(q url.Values) (string, error) {
	res, err := m.request(http.MethodPost, "/add", q)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	added := v1.AddResponse{}
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&added); err != nil {
		return "", err
	}

	return added.ID, nil
}

func (m *Manager) Pause(id string) error {
	q := url.Values{}
	q.Set("id", id)

	res, err := m.request(http.MethodPost, "/pause", q)
	if err != nil {
		return err
	}

	return res.Body.Close()
}

func (m *Manager) Resume(id string) error {
	q := url.Values{}
	q.Set("id", id)

	res, err := m.request(http.MethodPost, "/resume", q)
	if err != nil {
		return err
	}

	return res.Body.Close()
}

func (m *Manager) Remove(id string, deleteFiles bool) error {
	q := url.Values{}
	q.Set("id", id)
	q.Set("delete-files", strconv.FormatBool(deleteFiles))

	res, err := m.request(http.MethodPost, "/remove", q)
	if err != nil {
		return err
	}

	return res.Body.Close()
}
