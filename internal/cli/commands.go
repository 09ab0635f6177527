package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/wardledger/pkg/schema"
	"github.com/celerix-dev/wardledger/pkg/sdk"
)

type proposed struct {
	ID uint64 `json:"id" yaml:"id"`
}

type counted struct {
	Count uint64 `json:"count" yaml:"count"`
}

// NewProposeCommand creates the propose command.
func NewProposeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "propose <proposal-uri>",
		Short: "Record a new project in the Upcoming state",
		Long: `Record a new project in the Upcoming state.

The proposal document is stored elsewhere; the ledger keeps only its URI.

Example:
  wardctl propose ipfs://bafy.../proposal.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				id, err := l.Propose(ctx, args[0])
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(proposed{ID: id}, renderHeading("Recorded project", strconv.FormatUint(id, 10)))
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status> [report-uri]",
		Short: "Move a project along its lifecycle",
		Long: `Move a project along its lifecycle.

Upcoming projects may start (Ongoing) or be Cancelled. Ongoing projects may be
Completed, which requires the completion report URI, or Cancelled.

Example:
  wardctl status 3 completed ipfs://bafy.../report.pdf`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			next, err := schema.ParseStatus(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid status", err)
			}
			var report string
			if len(args) == 3 {
				report = args[2]
			}

			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				if err := l.UpdateStatus(ctx, id, next, report); err != nil {
					return err
				}
				rec, err := l.Get(ctx, id)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(rec, renderRecord(rec))
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one project record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				rec, err := l.Get(ctx, id)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(rec, renderRecord(rec))
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Size uint64
	Page uint64
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		Long: `List projects, newest first.

Page 0 holds the most recently recorded projects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l sdk.Ledger) error {
				page, err := l.List(ctx, opts.Size, opts.Page)
				if err != nil {
					return err
				}
				return formatter(opts.RootOptions, cmd).Success(page, renderPage(page, opts.Page))
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.Size, "size", 10, "records per page")
	cmd.Flags().Uint64Var(&opts.Page, "page", 0, "page number, 0 is the newest")

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				n, err := l.Count(ctx)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(counted{Count: n}, renderLine("%d", n))
			})
		},
	}
}

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After uint64
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the ledger event log",
		Long: `Show the ledger event log in commit order.

Use --after with the last sequence number seen to follow the log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l sdk.Ledger) error {
				events, err := l.Events(ctx, opts.After, opts.Limit)
				if err != nil {
					return err
				}
				if events == nil {
					events = []schema.Event{}
				}
				f := formatter(opts.RootOptions, cmd)
				f.VerboseLog("%d events after seq %d", len(events), opts.After)
				return f.Success(events, renderEvents(events))
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.After, "after", 0, "only events with a greater sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 for all)")

	return cmd
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <id> <to-address>",
		Short: "Request a custody transfer (always refused)",
		Long: `Request a custody transfer.

Project records are bound to the ward and can never change hands; the ledger
refuses every transfer with TRANSFER_NOT_ALLOWED.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !common.IsHexAddress(args[1]) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid address %q", args[1]))
			}
			return withLedger(cmd, opts, func(ctx context.Context, l sdk.Ledger) error {
				to := common.HexToAddress(args[1])
				if err := l.Transfer(ctx, id, to); err != nil {
					return err
				}
				return formatter(opts, cmd).Success(to.Hex(), nil)
			})
		},
	}
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s), err)
	}
	return id, nil
}
