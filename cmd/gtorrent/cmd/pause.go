package cmd

import (
	"context"
	"strings"

	"github.com/Hila-dev/gtorrent/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a torrent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		if strings.TrimSpace(viper.GetString(apiPasswordFlag)) == "" {
			return errMissingAPIPassword
		}

		if strings.TrimSpace(viper.GetString(apiUsernameFlag)) == "" {
			return errMissingAPIUsername
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		manager := client.NewManager(
			viper.GetString(raddrFlag),
			viper.GetString(apiUsernameFlag),
			viper.GetString(apiPasswordFlag),
			ctx,
		)

		return manager.Pause(args[0])
	},
}

func init() {
	pauseCmd.PersistentFlags().StringP(apiUsernameFlag, "u", "admin", "Username for the daemon")
	pauseCmd.PersistentFlags().StringP(apiPasswordFlag, "p", "", "Password or OIDC access token for the daemon")
	pauseCmd.PersistentFlags().StringP(raddrFlag, "r", "http://localhost:1337/", "Remote address")

	viper.AutomaticEnv()

	rootCmd.AddCommand(pauseCmd)
}
