package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowdb/urkel/proof"
	"github.com/flowdb/urkel/urkelerr"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <root-hex> <key-hex> <proof-hex>",
	Short: "Verify a proof built by the prove subcommand against a root",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		root, err := hex.DecodeString(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("root must be hex-encoded")
		}
		key, err := hex.DecodeString(args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("key must be hex-encoded")
		}
		raw, err := hex.DecodeString(args[2])
		if err != nil {
			log.Fatal().Err(err).Msg("proof must be hex-encoded")
		}

		h, err := openHandle()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open store")
		}
		defer h.Close() //nolint:errcheck

		p, err := proof.Decode(h.Hash(), raw, h.KeyBytes())
		if err != nil {
			log.Fatal().Err(err).Msg("decoding proof failed")
		}

		code, value := proof.Verify(h.Hash(), root, key, p)
		fmt.Println(code)
		if code == urkelerr.OK && value != nil {
			fmt.Println(hex.EncodeToString(value))
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
