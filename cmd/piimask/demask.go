package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pii-masking-service/internal/masker"
)

var (
	flagDemaskID     string
	flagDemaskStrict bool
)

func init() {
	demaskCmd.Flags().StringVar(&flagDemaskID, "id", "", "restore the result stored under this id in --vault")
	demaskCmd.Flags().BoolVar(&flagDemaskStrict, "strict", false, "fail if any record cannot be restored")

	rootCmd.AddCommand(demaskCmd)
}

var demaskCmd = &cobra.Command{
	Use:   "demask [file]",
	Short: "Restore text from a mask result",
	Long: `Restore the original text from a mask result read from the given file,
or stdin, in the JSON form printed by "piimask mask". With --id the result
is loaded from --vault instead.

Records that cannot be restored are reported on stderr and their
placeholders stay in the output.

	Examples:
	  piimask mask email.txt | piimask demask
	  piimask demask --vault vault.db --id 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res masker.Result
		if flagDemaskID != "" {
			if flagVault == "" {
				return fmt.Errorf("--id requires --vault")
			}
			v, err := openVault(cmd)
			if err != nil {
				return err
			}
			defer v.Close() //nolint:errcheck // read-only use
			rec, err := v.Get(cmd.Context(), flagDemaskID)
			if err != nil {
				return err
			}
			res = masker.Result{MaskedText: rec.MaskedText, Entities: rec.Entities}
		} else {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("parsing mask result: %w", err)
			}
		}

		text, unresolved := masker.DemaskDetailed(res.MaskedText, res.Entities)
		for _, i := range unresolved {
			fmt.Fprintf(cmd.ErrOrStderr(), "unresolved record %d (%s)\n", i, res.Entities[i].Classification)
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		if flagDemaskStrict && len(unresolved) > 0 {
			return fmt.Errorf("%d of %d records could not be restored", len(unresolved), len(res.Entities))
		}
		return nil
	},
}
