// Package cli implements the tableside command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tableside/internal/paths"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0-dev"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// cfg is the viper instance loaded by PersistentPreRunE.
var cfg *viper.Viper

// NewRootCmd creates the top-level "tableside" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tableside",
		Short: "Self-ordering back end with nested menu options",
		Long: "tableside loads a menu catalog, walks customers through nested option\n" +
			"choices (protein, weight, doneness...) and keeps the resulting cart.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			v, err := loadConfig(configDir)
			if err != nil {
				return sysError(err)
			}
			cfg = v
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $"+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newOrderCmd())
	root.AddCommand(newCartCmd())
	root.AddCommand(newServeCmd())

	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tableside:", err)
	}
	os.Exit(exitCode(err))
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// classify picks user or system exit codes for store and engine errors.
func classify(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrItemUnavailable),
		errors.Is(err, types.ErrNestedDisabled),
		errors.Is(err, types.ErrAddOnNotFound),
		errors.Is(err, types.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidDiningOption),
		errors.Is(err, types.ErrIncompleteSelection):
		return userError(err)
	default:
		return sysError(err)
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Cobra flag and argument errors.
	return exitUserError
}
