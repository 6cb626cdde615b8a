package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediapool.click/internal/bank"
	"mediapool.click/internal/config"
)

// newBanksCommand builds the banks subcommand
func (c *CLI) newBanksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List sample banks found in the configured search paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			searchPaths := append([]string{}, cfg.BankPaths...)
			searchPaths = append(searchPaths, config.NewXDGDirs().BankPaths()...)

			found := bank.List(c.fs, searchPaths)
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no banks found")
				return nil
			}

			for _, path := range found {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}
