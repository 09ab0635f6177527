package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/wardledger/internal/vault"
)

type keyInfo struct {
	Address string `json:"address" yaml:"address"`
	File    string `json:"file" yaml:"file"`
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the signing key",
		Long: `Manage the signing key.

The key is sealed with the passphrase in ` + PassphraseEnv + `. The daemon
administrator is the address of the key it was configured with.`,
	}
	cmd.AddCommand(newKeyNewCommand(opts))
	cmd.AddCommand(newKeyAddressCommand(opts))
	return cmd
}

func newKeyNewCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a signing key and seal it into --key-file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.KeyFile == "" {
				return NewExitError(ExitCommandError, "--key-file is required")
			}
			if _, err := os.Stat(opts.KeyFile); err == nil && !force {
				return NewExitError(ExitCommandError, opts.KeyFile+" already exists (use --force to replace it)")
			}

			key, err := vault.NewKey()
			if err != nil {
				return err
			}
			sealed, err := vault.SealKey(vault.KeyToHex(key), os.Getenv(PassphraseEnv))
			if err != nil {
				return err
			}

			if dir := filepath.Dir(opts.KeyFile); dir != "." {
				if err := os.MkdirAll(dir, 0700); err != nil {
					return WrapExitError(ExitCommandError, "create key dir", err)
				}
			}
			if err := os.WriteFile(opts.KeyFile, []byte(sealed+"\n"), 0600); err != nil {
				return WrapExitError(ExitCommandError, "write key file", err)
			}

			addr := vault.Address(key).Hex()
			f := formatter(opts, cmd)
			if os.Getenv(PassphraseEnv) == "" {
				f.VerboseLog("warning: %s is empty, the key is sealed without a passphrase", PassphraseEnv)
			}
			return f.Success(keyInfo{Address: addr, File: opts.KeyFile}, renderHeading("Address", addr))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key file")

	return cmd
}

func newKeyAddressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the key in --key-file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hexKey, err := loadKey(opts.KeyFile)
			if err != nil {
				return err
			}
			if hexKey == "" {
				return NewExitError(ExitCommandError, "no key file at "+opts.KeyFile)
			}
			key, err := vault.KeyFromHex(hexKey)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad key file", err)
			}
			addr := vault.Address(key).Hex()
			return formatter(opts, cmd).Success(keyInfo{Address: addr, File: opts.KeyFile}, renderHeading("Address", addr))
		},
	}
}
