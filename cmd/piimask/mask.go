package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pii-masking-service/internal/masker"
	"pii-masking-service/internal/ner"
)

var (
	flagMaskNERURL     string
	flagMaskNERTimeout time.Duration
	flagMaskFallback   bool
	flagMaskClean      bool
	flagMaskLowercase  bool
	flagMaskTextOnly   bool
)

func init() {
	maskCmd.Flags().StringVar(&flagMaskNERURL, "ner-url", "", "base URL of the named-entity recognizer sidecar")
	maskCmd.Flags().DurationVar(&flagMaskNERTimeout, "ner-timeout", 10*time.Second, "recognizer call timeout")
	maskCmd.Flags().BoolVar(&flagMaskFallback, "allow-pattern-only", false, "mask with pattern rules alone if the recognizer fails")
	maskCmd.Flags().BoolVar(&flagMaskClean, "clean", false, "collapse whitespace before masking")
	maskCmd.Flags().BoolVar(&flagMaskLowercase, "lowercase", false, "lowercase ASCII letters before masking (implies --clean)")
	maskCmd.Flags().BoolVarP(&flagMaskTextOnly, "text-only", "t", false, "print only the masked text")

	rootCmd.AddCommand(maskCmd)
}

var maskCmd = &cobra.Command{
	Use:   "mask [file]",
	Short: "Mask PII in text",
	Long: `Mask PII in the given file, or stdin, and print the result as JSON:

	{"masked_text": "...", "entities": [{"position": [s, e], "classification": "...", "entity": "..."}]}

Positions are character offsets into the input as masked. With --vault the
result is also stored and its id is added to the output.

	Examples:
	  piimask mask email.txt > masked.json
	  echo "reach me at a@b.io" | piimask mask -t
	  piimask mask --ner-url http://localhost:8001 --vault vault.db email.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		text := strings.TrimSuffix(string(data), "\n")
		if flagMaskClean || flagMaskLowercase {
			text = masker.Clean(text, flagMaskLowercase)
		}

		opts := []masker.Option{masker.WithLogger(cmdLogger(cmd, "MASKER"))}
		if flagMaskNERURL != "" {
			opts = append(opts, masker.WithRecognizer(ner.New(flagMaskNERURL, flagMaskNERTimeout, cmdLogger(cmd, "NER"))))
			if flagMaskFallback {
				opts = append(opts, masker.WithPatternOnlyFallback())
			}
		}

		res, err := masker.New(opts...).Mask(cmd.Context(), text)
		if err != nil {
			return err
		}

		out := struct {
			masker.Result
			ID string `json:"id,omitempty"`
		}{Result: res}

		v, err := openVault(cmd)
		if err != nil {
			return err
		}
		if v != nil {
			defer v.Close() //nolint:errcheck // read-mostly CLI
			if out.ID, err = v.Save(cmd.Context(), res); err != nil {
				return err
			}
		}

		if flagMaskTextOnly {
			fmt.Fprintln(cmd.OutOrStdout(), res.MaskedText)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
