package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <key-hex>",
	Short: "Look up a key against the store's current root",
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

		value, err := h.Current().Get(key)
		if err != nil {
			log.Fatal().Err(err).Msg("lookup failed")
		}
		if value == nil {
			fmt.Println("<not found>")
			return
		}
		fmt.Println(hex.EncodeToString(value))
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
