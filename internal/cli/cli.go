package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediapool.click/internal/config"
)

// Version is the CLI version string
const Version = "0.3.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd       *cobra.Command
	configManager *config.Manager
	fs            afero.Fs

	configPath string
}

// NewCLI creates a new CLI instance on the real filesystem
func NewCLI() *CLI {
	return NewCLIWithFilesystem(afero.NewOsFs())
}

// NewCLIWithFilesystem creates a CLI with a custom filesystem, used by tests
func NewCLIWithFilesystem(fs afero.Fs) *CLI {
	c := &CLI{
		configManager: config.NewManagerWithFilesystem(fs),
		fs:            fs,
	}

	rootCmd := &cobra.Command{
		Use:           "mediapool",
		Short:         "Polyphonic audio/video sampler with a tracker-style trigger interface",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file path (overrides XDG search)")

	rootCmd.AddCommand(
		c.newPlayCommand(),
		c.newAnalyzeCommand(),
		c.newGenCommand(),
		c.newBanksCommand(),
		c.newHistoryCommand(),
		c.newVersionCommand(),
	)

	c.rootCmd = rootCmd
	return c
}

// Run executes the CLI with the given arguments and streams, returning the
// process exit code
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c.rootCmd.SetArgs(args[1:])
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig resolves the effective configuration and installs logging
func (c *CLI) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if c.configPath != "" {
		cfg, err = c.configManager.LoadFromFile(c.configPath)
	} else {
		cfg, err = c.configManager.Load()
	}
	if err != nil {
		return nil, err
	}

	config.SetupLogging(cfg)
	return cfg, nil
}

// isInteractive reports whether stdout is a terminal
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// newVersionCommand builds the version subcommand
func (c *CLI) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mediapool version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mediapool %s\n", Version)
			slog.Debug("version command executed", "version", Version)
		},
	}
}
