package main

import (
	"github.com/Hila-dev/gtorrent/cmd/gtorrent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
