package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/config"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the piptrack configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			if err := config.Init(a.ConfigPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(a.Stdout, "✓ Config written to", a.ConfigPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration piptrack is using, after applying command-line
flags, followed by the resolved file locations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			m := &config.Manager{}
			if err := m.Write(a.Stdout, a.Config); err != nil {
				return err
			}

			history, _ := a.Config.HistoryPath()
			db, _ := a.Config.DatabasePath()
			logPath, _ := a.Config.LogPath()
			fmt.Fprintln(a.Stdout)
			fmt.Fprintln(a.Stdout, "# config file:", a.ConfigPath)
			fmt.Fprintln(a.Stdout, "# history:    ", history)
			fmt.Fprintln(a.Stdout, "# database:   ", db)
			fmt.Fprintln(a.Stdout, "# log:        ", logPath)
			fmt.Fprintln(a.Stdout, "# timeout:    ", a.Timeout)
			return nil
		},
	})

	return cmd
}
