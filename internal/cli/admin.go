package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/wardledger/internal/engine"
	"github.com/celerix-dev/wardledger/pkg/sdk"
)

type adminInfo struct {
	Admin string `json:"admin" yaml:"admin"`
}

type migrated struct {
	From    string `json:"from" yaml:"from"`
	Records uint64 `json:"records" yaml:"records"`
}

// NewAdminCommand creates the admin command and its subcommands.
func NewAdminCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Show the ledger administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				admin, err := l.Admin(ctx)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(adminInfo{Admin: admin.Hex()}, renderHeading("Administrator", admin.Hex()))
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "transfer <address>",
		Short: "Hand the administrator role to another key",
		Long: `Hand the administrator role to another key.

Only the current administrator may do this. The change is journaled, so the
new administrator keeps the role after a restart.

Example:
  wardctl admin transfer 0x52908400098527886E0F7030069857D2E4169EE7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid address %q", args[0]))
			}
			next := common.HexToAddress(args[0])
			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				if err := l.TransferAdmin(ctx, next); err != nil {
					return err
				}
				return formatter(opts, cmd).Success(adminInfo{Admin: next.Hex()}, renderHeading("Administrator", next.Hex()))
			})
		},
	})

	return cmd
}

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	From string
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate --from <addr>",
		Short: "Copy every record of another daemon into this ledger",
		Long: `Copy every record of another daemon into this ledger.

The destination must be empty. Records keep their identifiers, statuses and
URIs; the destination's event log is rebuilt with this key as the actor.

Example:
  wardctl migrate --from old-host:7001 --data-dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.From == "" {
				return NewExitError(ExitCommandError, "--from is required")
			}
			var clientOpts []sdk.ClientOption
			if opts.Insecure {
				clientOpts = append(clientOpts, sdk.WithoutTLS())
			}
			src, err := sdk.Connect(opts.From, clientOpts...)
			if err != nil {
				return WrapExitError(ExitFailure, "connect to source", err)
			}
			defer src.Close()

			return withLedger(cmd, opts.RootOptions, func(ctx context.Context, dst sdk.Ledger) error {
				f := formatter(opts.RootOptions, cmd)
				if err := engine.Migrate(ctx, src, dst); err != nil {
					return err
				}
				n, err := dst.Count(ctx)
				if err != nil {
					return err
				}
				f.VerboseLog("copied %d records from %s", n, opts.From)
				return f.Success(migrated{From: opts.From, Records: n},
					renderHeading("Migrated", fmt.Sprintf("%d records from %s", n, opts.From)))
			})
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "address of the source daemon (host:port)")

	return cmd
}
