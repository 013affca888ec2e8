package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/Hila-dev/gtorrent/pkg/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	storageFlag      = "storage"
	stateFlag        = "state"
	laddrFlag        = "laddr"
	torrentPortFlag  = "torrent-port"
	apiUsernameFlag  = "api-username"
	apiPasswordFlag  = "api-password"
	oidcIssuerFlag   = "oidc-issuer"
	oidcClientIDFlag = "oidc-client-id"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	Aliases: []string{"d"},
	Short:   "Start the torrent daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addr, err := net.ResolveTCPAddr("tcp", viper.GetString(laddrFlag))
		if err != nil {
			return err
		}

		if port := os.Getenv("PORT"); port != "" {
			log.Debug().Msg("Using port from PORT env variable")

			p, err := strconv.Atoi(port)
			if err != nil {
				return err
			}

			addr.Port = p
		}

		storage := viper.GetString(storageFlag)

		daemon := server.NewDaemon(
			addr.String(),
			storage,
			viper.GetString(stateFlag),
			filepath.Join(storage, ".gtorrent_state.json"),
			viper.GetInt(torrentPortFlag),
			viper.GetString(apiUsernameFlag),
			viper.GetString(apiPasswordFlag),
			viper.GetString(oidcIssuerFlag),
			viper.GetString(oidcClientIDFlag),
			viper.GetInt(verboseFlag) > 5,
			ctx,
		)

		if err := daemon.Open(); err != nil {
			return err
		}

		s := make(chan os.Signal, 1)
		signal.Notify(s, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-s

			log.Debug().Msg("Gracefully shutting down")

			go func() {
				<-s

				log.Debug().Msg("Forcing shutdown")

				cancel()

				os.Exit(1)
			}()

			if err := daemon.Close(); err != nil {
				panic(err)
			}

			cancel()
		}()

		log.Info().
			Str("address", addr.String()).
			Msg("Listening")

		return daemon.Wait()
	},
}

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	daemonCmd.PersistentFlags().StringP(storageFlag, "s", filepath.Join(home, "Downloads"), "Path to download torrents to")
	daemonCmd.PersistentFlags().String(stateFlag, filepath.Join(home, ".local", "share", "gtorrent", "var", "lib", "gtorrent", "state.json"), "Path to the torrent state file")
	daemonCmd.PersistentFlags().StringP(laddrFlag, "l", ":1337", "Listening address")
	daemonCmd.PersistentFlags().Int(torrentPortFlag, 0, "Port for incoming torrent connections (0 picks a free port)")
	daemonCmd.PersistentFlags().String(apiUsernameFlag, "admin", "Username for the management API (can also be set using the API_USERNAME env variable). Ignored if any of the OIDC parameters are set.")
	daemonCmd.PersistentFlags().String(apiPasswordFlag, "", "Password for the management API (can also be set using the API_PASSWORD env variable). Ignored if any of the OIDC parameters are set.")
	daemonCmd.PersistentFlags().String(oidcIssuerFlag, "", "OIDC Issuer (can also be set using the OIDC_ISSUER env variable)")
	daemonCmd.PersistentFlags().String(oidcClientIDFlag, "", "OIDC Client ID (can also be set using the OIDC_CLIENT_ID env variable)")

	viper.AutomaticEnv()

	rootCmd.AddCommand(daemonCmd)
}
