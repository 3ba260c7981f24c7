package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v4"
)

// inspectRecord is the human/tool-readable dump shape inspect emits.
// It is intentionally not the on-disk node/leaf wire format of §3.3/§6
// (node.EncodeLeaf/EncodeInternal stay fixed-width binary); this is a
// debug-only rendering of the live key/value set.
type inspectRecord struct {
	Key   []byte `msgpack:"key"`
	Value []byte `msgpack:"value"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump the current tree's (key, value) pairs as msgpack to stdout",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		h, err := openHandle()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open store")
		}
		defer h.Close() //nolint:errcheck

		it := h.Current().Iterator()
		var records []inspectRecord
		for it.Next() {
			records = append(records, inspectRecord{
				Key:   append([]byte(nil), it.Key()...),
				Value: append([]byte(nil), it.Value()...),
			})
		}
		if err := it.Err(); err != nil {
			log.Fatal().Err(err).Msg("iteration failed")
		}

		enc, err := msgpack.Marshal(records)
		if err != nil {
			log.Fatal().Err(err).Msg("encoding inspect dump failed")
		}
		os.Stdout.Write(enc) //nolint:errcheck
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
