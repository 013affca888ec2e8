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

var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"e"},
	Short:   "Print the add-sources of all tracked torrents",
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

		descriptors, err := manager.GetDescriptors()
		if err != nil {
			return err
		}

		y, err := yaml.Marshal(descriptors)
		if err != nil {
			return err
		}

		fmt.Printf("%s", y)

		return nil
	},
}

func init() {
	exportCmd.PersistentFlags().StringP(apiUsernameFlag, "u", "admin", "Username for the daemon")
	exportCmd.PersistentFlags().StringP(apiPasswordFlag, "p", "", "Password or OIDC access token for the daemon")
	exportCmd.PersistentFlags().StringP(raddrFlag, "r", "http://localhost:1337/", "Remote address")

	viper.AutomaticEnv()

	rootCmd.AddCommand(exportCmd)
}
