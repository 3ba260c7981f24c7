package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the live generation into a fresh segment set (§4.2.4)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		h, err := openHandle()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open store")
		}
		defer h.Close() //nolint:errcheck

		if err := h.Compact(); err != nil {
			log.Fatal().Err(err).Msg("compaction failed")
		}
		fmt.Printf("root: %s\n", hex.EncodeToString(h.RootHash()))
	},
}

func init() {
	rootCmd.AddCommand(compactCmd)
}
