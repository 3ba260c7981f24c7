package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowdb/urkel/proof"
)

var proveCmd = &cobra.Command{
	Use:   "prove <key-hex>",
	Short: "Build an inclusion/exclusion proof for a key against the current root",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := hex.DecodeString(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("key must be hex-encoded")
		}

		h, err := openHandle()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open store")
		}
		defer h.Close() //nolint:errcheck

		snap := h.Current()
		p, err := snap.Prove(key)
		if err != nil {
			log.Fatal().Err(err).Msg("proving failed")
		}

		enc, err := proof.Encode(h.Hash(), p)
		if err != nil {
			log.Fatal().Err(err).Msg("encoding proof failed")
		}

		fmt.Printf("root: %s\n", hex.EncodeToString(snap.RootHash()))
		fmt.Printf("proof: %s\n", hex.EncodeToString(enc))
	},
}

func init() {
	rootCmd.AddCommand(proveCmd)
}
