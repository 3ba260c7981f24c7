package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <key-hex> <value-hex>",
	Short: "Insert a key/value pair and commit it, printing the new root hash",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := hex.DecodeString(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("key must be hex-encoded")
		}
		value, err := hex.DecodeString(args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("value must be hex-encoded")
		}

		h, err := openHandle()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open store")
		}
		defer h.Close() //nolint:errcheck

		tx, err := h.Begin()
		if err != nil {
			log.Fatal().Err(err).Msg("could not begin transaction")
		}
		if err := tx.Insert(key, value); err != nil {
			tx.Discard()
			log.Fatal().Err(err).Msg("insert failed")
		}
		root, err := tx.Commit()
		if err != nil {
			log.Fatal().Err(err).Msg("commit failed")
		}
		fmt.Println(hex.EncodeToString(root))
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
}
