package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hila-dev/gtorrent/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <torrent file>",
	Aliases: []string{"i"},
	Short:   "List the files inside a .torrent file without adding it",
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

		info, err := manager.Inspect(args[0])
		if err != nil {
			return err
		}

		y, err := yaml.Marshal(info)
		if err != nil {
			return err
		}

		fmt.Printf("%s", y)

		return nil
	},
}

func init() {
	inspectCmd.PersistentFlags().StringP(apiUsernameFlag, "u", "admin", "Username for the daemon")
	inspectCmd.PersistentFlags().StringP(apiPasswordFlag, "p", "", "Password or OIDC access token for the daemon")
	inspectCmd.PersistentFlags().StringP(raddrFlag, "r", "http://localhost:1337/", "Remote address")

	viper.AutomaticEnv()

	rootCmd.AddCommand(inspectCmd)
}
