package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	v1 "github.com/Hila-dev/gtorrent/pkg/api/http/v1"
	"github.com/Hila-dev/gtorrent/pkg/client"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	raddrFlag = "raddr"
	watchFlag = "watch"
	yamlFlag  = "yaml"
)

var (
	errMissingAPIPassword = errors.New("missing API password")
	errMissingAPIUsername = errors.New("missing API username")
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"s", "ls"},
	Short:   "List the status of all tracked torrents",
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

		if !viper.GetBool(watchFlag) {
			statuses, err := manager.GetStatus()
			if err != nil {
				return err
			}

			return printStatuses(statuses)
		}

		tick := time.NewTicker(time.Second)
		defer tick.Stop()

		for {
			statuses, err := manager.GetStatus()
			if err != nil {
				return err
			}

			fmt.Print("\033[H\033[2J")
			if err := printStatuses(statuses); err != nil {
				return err
			}

			<-tick.C
		}
	},
}

func printStatuses(statuses []v1.TorrentStatus) error {
	if viper.GetBool(yamlFlag) {
		y, err := yaml.Marshal(statuses)
		if err != nil {
			return err
		}

		fmt.Printf("%s", y)

		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tPROGRESS\tDOWN\tUP\tPEERS\tETA\tSTATUS")
	for _, s := range statuses {
		fmt.Fprintf(
			w,
			"%v\t%v\t%v\t%.1f %%\t%v\t%v\t%v\t%v\t%v\n",
			shortID(s.ID),
			s.Name,
			humanize.IBytes(uint64(s.TotalSize)),
			s.Progress*100,
			humanize.IBytes(uint64(s.DownloadRate))+"/s",
			humanize.IBytes(uint64(s.UploadRate))+"/s",
			s.Peers,
			formatETA(s.ETA),
			s.State,
		)
	}

	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}

func formatETA(seconds int64) string {
	if seconds < 0 || seconds > 365*24*3600 {
		return "—"
	}

	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%02d:%02d", m, s)
}

func init() {
	statusCmd.PersistentFlags().StringP(apiUsernameFlag, "u", "admin", "Username for the daemon")
	statusCmd.PersistentFlags().StringP(apiPasswordFlag, "p", "", "Password or OIDC access token for the daemon")
	statusCmd.PersistentFlags().StringP(raddrFlag, "r", "http://localhost:1337/", "Remote address")
	statusCmd.PersistentFlags().BoolP(watchFlag, "w", false, "Keep polling the daemon every second")
	statusCmd.PersistentFlags().Bool(yamlFlag, false, "Print statuses as YAML instead of a table")

	viper.AutomaticEnv()

	rootCmd.AddCommand(statusCmd)
}
