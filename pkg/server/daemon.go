package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	v1 "github.com/Hila-dev/gtorrent/pkg/api/http/v1"
	"github.com/Hila-dev/gtorrent/pkg/engine"
	"github.com/Hila-dev/gtorrent/pkg/manager"
	"github.com/Hila-dev/gtorrent/pkg/store"
	"github.com/pojntfx/go-auth-utils/pkg/authn"
	"github.com/pojntfx/go-auth-utils/pkg/authn/basic"
	"github.com/pojntfx/go-auth-utils/pkg/authn/oidc"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptySource = errors.New("could not work with empty magnet link or torrent file")
	ErrEmptyPath   = errors.New("could not work with empty path")
	ErrEmptyID     = errors.New("could not work with empty torrent id")
)

// Daemon runs the torrent session manager and exposes its seven operations
// over an authenticated HTTP API.
type Daemon struct {
	laddr        string
	storage      string
	statePath    string
	legacyState  string
	torrentPort  int
	apiUsername  string
	apiPassword  string
	oidcIssuer   string
	oidcClientID string
	debug        bool

	adapter *engine.Adapter
	manager *manager.Manager
	srv     *http.Server

	errs chan error

	ctx context.Context
}

func NewDaemon(
	laddr string,
	storage string,
	statePath string,
	legacyState string,
	torrentPort int,
	apiUsername string,
	apiPassword string,
	oidcIssuer string,
	oidcClientID string,
	debug bool,

	ctx context.Context,
) *Daemon {
	return &Daemon{
		laddr:        laddr,
		storage:      storage,
		statePath:    statePath,
		legacyState:  legacyState,
		torrentPort:  torrentPort,
		apiUsername:  apiUsername,
		apiPassword:  apiPassword,
		oidcIssuer:   oidcIssuer,
		oidcClientID: oidcClientID,
		debug:        debug,

		errs: make(chan error),

		ctx: ctx,
	}
}

func (d *Daemon) Open() error {
	log.Trace().Msg("Opening daemon")

	adapter, err := engine.NewAdapter(d.storage, d.torrentPort, d.debug)
	if err != nil {
		return err
	}
	d.adapter = adapter

	d.manager = manager.NewManager(adapter, store.NewStore(d.statePath, d.legacyState))
	d.manager.Rehydrate()

	var auth authn.Authn
	if strings.TrimSpace(d.oidcIssuer) == "" && strings.TrimSpace(d.oidcClientID) == "" {
		auth = basic.NewAuthn(d.apiUsername, d.apiPassword)
	} else {
		auth = oidc.NewAuthn(d.oidcIssuer, d.oidcClientID)
	}

	if err := auth.Open(d.ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()

	handle := func(fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					e, ok := err.(error)
					if ok {
						log.Debug().
							Err(e).
							Msg("Closed connection for client")
					} else {
						log.Debug().Msg("Closed connection for client")
					}
				}
			}()

			u, p, ok := r.BasicAuth()
			if err := auth.Validate(u, p); !ok || err != nil {
				w.WriteHeader(http.StatusUnauthorized)

				panic(fmt.Errorf("%v", http.StatusUnauthorized))
			}

			fn(w, r)
		}
	}

	mux.HandleFunc("/status", handle(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Msg("Getting status")

		enc := json.NewEncoder(w)
		if err := enc.Encode(d.manager.ListStatus()); err != nil {
			panic(err)
		}
	}))

	mux.HandleFunc("/descriptors", handle(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Msg("Getting descriptors")

		enc := json.NewEncoder(w)
		if err := enc.Encode(d.manager.Descriptors()); err != nil {
			panic(err)
		}
	}))

	mux.HandleFunc("/inspect", handle(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)

			panic(ErrEmptyPath)
		}

		name, files, err := engine.Inspect(path)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)

			panic(err)
		}

		info := v1.Info{
			Name:  name,
			Files: []v1.File{},
		}
		for _, f := range files {
			info.Files = append(info.Files, v1.File{
				Path:   f.Path,
				Length: f.Length,
			})
		}

		enc := json.NewEncoder(w)
		if err := enc.Encode(info); err != nil {
			panic(err)
		}
	}))

	mux.HandleFunc("/add", handle(func(w http.ResponseWriter, r *http.Request) {
		var (
			id  string
			err error
		)
		if magnet := r.URL.Query().Get("magnet"); magnet != "" {
			log.Debug().
				Str("magnet", magnet).
				Msg("Adding magnet")

			id, err = d.manager.AddFromMagnet(magnet)
		} else if path := r.URL.Query().Get("file"); path != "" {
			log.Debug().
				Str("file", path).
				Msg("Adding torrent file")

			id, err = d.manager.AddFromFile(path, parsePriorities(r.URL.Query().Get("priorities")))
		} else {
			w.WriteHeader(http.StatusUnprocessableEntity)

			panic(ErrEmptySource)
		}

		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)

			enc := json.NewEncoder(w)
			_ = enc.Encode(map[string]string{"error": err.Error()})

			panic(err)
		}

		enc := json.NewEncoder(w)
		if err := enc.Encode(v1.AddResponse{ID: id}); err != nil {
			panic(err)
		}
	}))

	mux.HandleFunc("/pause", handle(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)

			panic(ErrEmptyID)
		}

		log.Debug().
			Str("id", id).
			Msg("Pausing torrent")

		d.manager.Pause(id)
	}))

	mux.HandleFunc("/resume", handle(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)

			panic(ErrEmptyID)
		}

		log.Debug().
			Str("id", id).
			Msg("Resuming torrent")

		d.manager.Resume(id)
	}))

	mux.HandleFunc("/remove", handle(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)

			panic(ErrEmptyID)
		}

		deleteFiles, _ := strconv.ParseBool(r.URL.Query().Get("delete-files"))

		log.Debug().
			Str("id", id).
			Bool("deleteFiles", deleteFiles).
			Msg("Removing torrent")

		d.manager.Remove(id, deleteFiles)
	}))

	d.srv = &http.Server{Addr: d.laddr}
	d.srv.Handler = mux

	log.Debug().
		Str("address", d.laddr).
		Msg("Listening")

	go func() {
		if err := d.srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				close(d.errs)

				return
			}

			d.errs <- err

			return
		}
	}()

	return nil
}

func (d *Daemon) Close() error {
	log.Trace().Msg("Closing daemon")

	d.manager.Close()

	if err := d.srv.Shutdown(d.ctx); err != nil {
		if err != context.Canceled {
			return err
		}
	}

	if err := d.adapter.Close(); err != nil {
		if err != context.Canceled {
			return err
		}
	}

	return nil
}

func (d *Daemon) Wait() error {
	for err := range d.errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func parsePriorities(raw string) []int {
	if raw == "" {
		return nil
	}

	priorities := []int{}
	for _, part := range strings.Split(raw, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}

		priorities = append(priorities, p)
	}

	return priorities
}
