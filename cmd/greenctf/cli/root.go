// Package cli is the greenctf command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"greenctf/internal/platform/config"
	"greenctf/internal/platform/health"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	health.Version = version
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greenctf",
		Short: "GreenCTF admin access control server",
		Long: `Serves admin login, logout, session checks and credential changes for the
GreenCTF back office, and provisions admin accounts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./greenctf.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig reads the file and environment, then applies flags explicitly
// set on the command line. bindings maps config keys to flag names.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return nil, err
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	return config.Load(v)
}
