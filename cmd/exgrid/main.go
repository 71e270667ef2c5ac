// Package main provides the CLI entry point for exgrid.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/output"
)

var (
	configPath string
	pretty     bool
	logLevel   string
	user       string

	engine *exgrid.Engine
	log    = logrus.New()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		_ = output.Write(os.Stdout, exgrid.ResultFor(err), pretty)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "exgrid",
		Short: "Read and edit worksheet tables in place",
		Long: `exgrid reads Excel worksheets and JSON files as tables and applies
row-level edits that keep formulas, styles and layout intact.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/exgrid/config.json)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "User recorded in audit columns (default: config defaultUser)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, err)
	})

	rootCmd.AddCommand(
		newMetaCmd(),
		newReadCmd(),
		newHeaderCmd(),
		newCreateCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newPatchCmd(),
		newExportCmd(),
		newInvalidateCmd(),
		newSortCmd(),
		newJSONCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// setup configures logging and builds the engine from the config file.
func setup(_ *cobra.Command, _ []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	path := configPath
	if path == "" {
		path = config.GlobalConfigPath()
	}
	var store *config.Store
	if path == "" {
		store = config.NewStore(config.DefaultConfig(), "", log)
	} else if store, err = config.OpenStore(path, log); err != nil {
		return fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, err)
	}
	engine = exgrid.New(store, exgrid.WithLogger(log))
	return nil
}

// emit writes v as JSON to the command's output.
func emit(cmd *cobra.Command, v any) error {
	return output.Write(cmd.OutOrStdout(), v, pretty)
}

// args validates the positional argument count.
func args(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := cobra.ExactArgs(n)(cmd, a); err != nil {
			return fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, err)
		}
		return nil
	}
}

var errNoRowRef = errors.New("one of --pk or --row is required")

// rowRef builds a row reference from --pk and --row.
func rowRef(pk string, row int) (exgrid.RowRef, error) {
	if pk == "" && row <= 0 {
		return exgrid.RowRef{}, fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, errNoRowRef)
	}
	ref := exgrid.RowRef{Row: row}
	if pk != "" {
		ref.PK = pk
	}
	return ref, nil
}

// expectedVersion returns nil unless the flag was set.
func expectedVersion(cmd *cobra.Command, v int) *int {
	if !cmd.Flags().Changed("expected-version") {
		return nil
	}
	return &v
}
