// Package cli implements wardctl, the command line client of the ward ledger.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/wardledger/internal/vault"
	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/sdk"
)

// PassphraseEnv names the variable holding the key file passphrase.
const PassphraseEnv = "WARDLEDGER_KEY_PASSPHRASE"

// DefaultKeyFile is where wardctl keeps the sealed signing key.
const DefaultKeyFile = "wardledger.key"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "text" | "json" | "yaml"
	Addr     string
	DataDir  string
	KeyFile  string
	Insecure bool

	// Open returns the ledger commands run against. Defaults to openLedger.
	Open func(ctx context.Context, opts *RootOptions) (sdk.Ledger, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for wardctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Open == nil {
		opts.Open = openLedger
	}

	cmd := &cobra.Command{
		Use:   "wardctl",
		Short: "wardctl - ward ledger client",
		Long: `Record and follow community projects on the ward ledger.

Without --addr (or WARDLEDGER_ADDR) wardctl opens the ledger in --data-dir directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !lo.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "daemon address (host:port)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "./data", "directory of the embedded ledger")
	cmd.PersistentFlags().StringVar(&opts.KeyFile, "key-file", DefaultKeyFile, "sealed signing key")
	cmd.PersistentFlags().BoolVar(&opts.Insecure, "insecure", false, "dial the daemon without TLS")

	// Add subcommands
	cmd.AddCommand(NewProposeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))

	return cmd
}

// Execute runs wardctl with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	return execute(newRootCommand(opts), opts, args, stdout, stderr)
}

func execute(cmd *cobra.Command, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	// Cobra reports unknown commands and bad arity as plain errors.
	if GetExitCode(err) == ExitFailure && isUsageError(err) {
		err = WrapExitError(ExitCommandError, "usage", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr}
	if !lo.Contains(ValidFormats, f.Format) {
		f.Format = "text"
	}
	_ = f.Error(ErrorCode(err), err.Error())
	if f.Format == "text" && ledger.Retryable(err) {
		fmt.Fprintln(stderr, faintStyle.Sprint("hint: correct the input and run the command again"))
	}
	return GetExitCode(err)
}

func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "accepts ") ||
		strings.HasPrefix(msg, "requires ")
}

// formatter builds the output formatter for a command.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openLedger loads the signing key, if there is one, and opens the remote or embedded ledger.
func openLedger(ctx context.Context, opts *RootOptions) (sdk.Ledger, error) {
	cfg := sdk.Config{Addr: opts.Addr, DataDir: opts.DataDir, Insecure: opts.Insecure}

	key, err := loadKey(opts.KeyFile)
	if err != nil {
		return nil, err
	}
	if key != "" {
		cfg.Key, err = vault.KeyFromHex(key)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "bad key file", err)
		}
	}

	l, err := sdk.New(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "open ledger", err)
	}
	return l, nil
}

// loadKey returns the hex private key sealed in path, or "" when the file does not exist.
func loadKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	sealed, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "read key file", err)
	}

	key, err := vault.OpenKey(strings.TrimSpace(string(sealed)), os.Getenv(PassphraseEnv))
	if err != nil {
		return "", WrapExitError(ExitCommandError, "unseal key file (check "+PassphraseEnv+")", err)
	}
	return key, nil
}

// withLedger opens the ledger for the duration of fn.
func withLedger(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, l sdk.Ledger) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := opts.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(ctx, l)
}
