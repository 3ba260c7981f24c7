package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open (creating if necessary) the store and print its current root hash",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		h, err := openHandle()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open store")
		}
		defer h.Close() //nolint:errcheck

		fmt.Printf("dir: %s\n", flagDir)
		fmt.Printf("root: %s\n", hex.EncodeToString(h.RootHash()))
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
