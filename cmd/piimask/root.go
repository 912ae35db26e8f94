package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/vault"
)

var (
	flagLogLevel string
	flagVault    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagVault, "vault", "", "SQLite vault file for storing or loading mask results")
}

var rootCmd = &cobra.Command{
	Use:   "piimask",
	Short: "Mask and restore personal data in text",
	Long: `piimask replaces emails, phone numbers, card numbers, CVVs, Aadhaar
numbers, dates of birth, card expiries and names with placeholders such as
[email], and restores the original text from the mask result.

Named entities (people, organisations, places) are detected when a
recognizer sidecar is given with --ner-url.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func cmdLogger(cmd *cobra.Command, module string) *logger.Logger {
	return logger.NewWithWriter(module, flagLogLevel, cmd.ErrOrStderr())
}

// readInput reads the named file, or stdin when no file (or "-") is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

// openVault opens --vault, or returns nil when it is unset.
func openVault(cmd *cobra.Command) (*vault.Vault, error) {
	if flagVault == "" {
		return nil, nil
	}
	v, err := vault.Open(flagVault, cmdLogger(cmd, "VAULT"))
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	return v, nil
}
