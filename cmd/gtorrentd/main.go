package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Hila-dev/gtorrent/pkg/server"
)

func main() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	storage := flag.String("storage", filepath.Join(home, "Downloads"), "Path to download torrents to")
	state := flag.String("state", filepath.Join(home, ".local", "share", "gtorrent", "var", "lib", "gtorrent", "state.json"), "Path to the torrent state file")
	laddr := flag.String("laddr", ":1337", "Listen address")
	torrentPort := flag.Int("torrent-port", 0, "Port for incoming torrent connections (0 picks a free port)")
	apiUsername := flag.String("api-username", "admin", "Username for the management API")
	apiPassword := flag.String("api-password", "", "Password for the management API")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon := server.NewDaemon(
		*laddr,
		*storage,
		*state,
		filepath.Join(*storage, ".gtorrent_state.json"),
		*torrentPort,
		*apiUsername,
		*apiPassword,
		"",
		"",
		*verbose,
		ctx,
	)

	if err := daemon.Open(); err != nil {
		panic(err)
	}

	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-s

		if err := daemon.Close(); err != nil {
			panic(err)
		}

		cancel()
	}()

	log.Println("Listening on", *laddr)

	if err := daemon.Wait(); err != nil {
		panic(err)
	}
}
