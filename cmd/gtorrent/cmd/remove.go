package cmd

import (
	"context"
	"strings"

	"github.com/Hila-dev/gtorrent/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	deleteFilesFlag = "delete-files"
)

var removeCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a torrent, optionally deleting its downloaded data",
	Args:    cobra.ExactArgs(1),
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

		return manager.Remove(args[0], viper.GetBool(deleteFilesFlag))
	},
}

func init() {
	removeCmd.PersistentFlags().StringP(apiUsernameFlag, "u", "admin", "Username for the daemon")
	removeCmd.PersistentFlags().StringP(apiPasswordFlag, "p", "", "Password or OIDC access token for the daemon")
	removeCmd.PersistentFlags().StringP(raddrFlag, "r", "http://localhost:1337/", "Remote address")
	removeCmd.PersistentFlags().Bool(deleteFilesFlag, false, "Also delete downloaded data from disk")

	viper.AutomaticEnv()

	rootCmd.AddCommand(removeCmd)
}
