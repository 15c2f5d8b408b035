// Package cli implements the objects command line tool.
package cli

import (
	"fmt"
	"io"

	ouroboros "github.com/i5heu/ouroboros-objects"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	Backend    string
	Path       string
	Verbose    bool
	Format     string // "text" | "json"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect and exercise an ouroboros object store",
		Long: `objects opens an ouroboros object store and works on the
content addressed elements inside it.

The store is taken from --config, a YAML or TOML file, and can be
overridden with --backend and --path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML or TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "store backend (memory|badger|bolt)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "store path")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewCatCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))

	return cmd
}

// openDB builds the config from the file and flags and opens the store.
// Logs go to logOut so they never mix with command output.
func openDB(opts *RootOptions, logOut io.Writer) (*ouroboros.ObjectDB, error) {
	var conf ouroboros.Config
	if opts.ConfigPath != "" {
		loaded, err := ouroboros.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
		conf = loaded
	}
	if opts.Backend != "" {
		conf.Store.Backend = opts.Backend
	}
	if opts.Path != "" {
		conf.Store.Path = opts.Path
	}

	log := logrus.New()
	log.SetOutput(logOut)
	level := logrus.InfoLevel
	if conf.LogLevel != "" {
		parsed, err := logrus.ParseLevel(conf.LogLevel)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "log level", err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	conf.Logger = log

	registry := schema.NewRegistry()
	if err := registry.RegisterFile(DemoSchema()); err != nil {
		return nil, err
	}
	conf.Registry = registry

	db, err := ouroboros.New(conf)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return db, nil
}
