// Package cmd implements the urkelctl CLI's subcommands: open (implicit
// in every command), get, put, prove, verify, compact and inspect.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowdb/urkel"
	"github.com/flowdb/urkel/fscap"
)

var (
	flagDir      string
	flagBits     int
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "urkelctl",
	Short: "Inspect and mutate an urkel tree store",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevel()
	},
}

// Execute runs the CLI, exiting the process with status 1 if the
// command returns an error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "d", "urkel-data", "store directory")
	rootCmd.PersistentFlags().IntVar(&flagBits, "bits", 160, "key width in bits")
	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "loglevel", "l", "info", "log level (panic, fatal, error, warn, info, debug)")

	viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))    //nolint:errcheck
	viper.BindPFlag("bits", rootCmd.PersistentFlags().Lookup("bits")) //nolint:errcheck

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.AutomaticEnv()
}

func setLogLevel() {
	switch flagLogLevel {
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		log.Fatal().Str("loglevel", flagLogLevel).
			Msg("unsupported log level, choose one of \"panic\", \"fatal\", \"error\", \"warn\", \"info\" or \"debug\"")
	}
}

// openHandle opens the store named by --dir against the real
// filesystem, using urkel's own default tunables for everything but
// the directory and key width.
func openHandle() (*urkel.Handle, error) {
	cfg := urkel.DefaultConfig()
	cfg.Prefix = viper.GetString("dir")
	cfg.Bits = viper.GetInt("bits")
	cfg.Log = log.Logger
	return urkel.Open(fscap.NewOSFS(), cfg)
}
