package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"medical-files-server/internal/config"
	"medical-files-server/internal/logging"
)

// app carries what every subcommand needs once the root has loaded configuration.
type app struct {
	fs     afero.Fs
	out    io.Writer
	cfg    *config.Config
	logger *logging.Logger
}

// NewRootCommand returns the root command with all subcommands attached.
func NewRootCommand(fs afero.Fs, out io.Writer) *cobra.Command {
	cobra.EnableCommandSorting = false

	a := &app{fs: fs, out: out}
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "medfiles",
		Short: "Medical file ingestion service.",
		Long: `medfiles validates, categorizes and stores patient medical files, and keeps a
searchable index of them. Run "medfiles serve" for the HTTP API or use the other
commands to work with the index directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(envFile)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(NewServeCommand(a))
	rootCmd.AddCommand(NewImportCommand(a))
	rootCmd.AddCommand(NewListCommand(a))
	rootCmd.AddCommand(NewDeleteCommand(a))

	return rootCmd
}

// load reads the dotenv file, if any, then the environment.
func (a *app) load(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Prefix: "medfiles",
	})
	return nil
}
