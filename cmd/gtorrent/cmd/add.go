package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Hila-dev/gtorrent/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	prioritiesFlag = "priorities"
)

var addCmd = &cobra.Command{
	Use:     "add <magnet link or torrent file>",
	Aliases: []string{"a"},
	Short:   "Add a torrent by magnet link or .torrent file",
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

		var (
			id  string
			err error
		)
		if strings.HasPrefix(args[0], "magnet:") {
			id, err = manager.AddMagnet(args[0])
		} else {
			var priorities []int
			if raw := viper.GetString(prioritiesFlag); raw != "" {
				for _, part := range strings.Split(raw, ",") {
					p, err := strconv.Atoi(strings.TrimSpace(part))
					if err != nil {
						return err
					}

					priorities = append(priorities, p)
				}
			}

			id, err = manager.AddFile(args[0], priorities)
		}
		if err != nil {
			return err
		}

		fmt.Println(id)

		return nil
	},
}

func init() {
	addCmd.PersistentFlags().StringP(apiUsernameFlag, "u", "admin", "Username for the daemon")
	addCmd.PersistentFlags().StringP(apiPasswordFlag, "p", "", "Password or OIDC access token for the daemon")
	addCmd.PersistentFlags().StringP(raddrFlag, "r", "http://localhost:1337/", "Remote address")
	addCmd.PersistentFlags().String(prioritiesFlag, "", "Comma-separated per-file priorities for a .torrent add, 0 skips the file (i.e. 1,0,1)")

	viper.AutomaticEnv()

	rootCmd.AddCommand(addCmd)
}
