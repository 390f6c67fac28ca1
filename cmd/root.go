/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	logger  *zap.SugaredLogger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "commport",
	Short: "Event-driven serial port toolkit",
	Long: `commport opens serial ports with hardware event monitoring and
asynchronous, timed writes.

Port settings can be given as flags, as COMMPORT_* environment variables
(for example COMMPORT_BAUD=9600) or in a config file passed with --config.

Example usage:
  commport list
  commport connect /dev/ttyUSB0 --baud 9600 --handshake ctsrts
  commport send "AT" COM3 --line`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetBool("verbose"))
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l.Sugar()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	flags.BoolP("verbose", "v", false, "Log connection events to stderr")
	flags.IntP("baud", "b", 115200, "Baud rate")
	flags.Int("data-bits", 8, "Data bits (1-8, the device decides what it supports)")
	flags.String("parity", "none", "Parity: none, odd, even, mark, space")
	flags.String("stop-bits", "1", "Stop bits: 1, 1.5 or 2")
	flags.StringP("handshake", "f", "none", "Flow control: none, xonxoff, ctsrts, dsrdtr")
	flags.Int("rx-queue", 0, "Receive queue size (0 = driver default)")
	flags.Int("tx-queue", 0, "Transmit queue size (0 = driver default)")
	flags.Duration("send-timeout", 0, "Constant part of the send timeout (0 = none)")
	flags.Duration("send-timeout-per-byte", 0, "Per-byte part of the send timeout")
	flags.Bool("auto-reopen", false, "Reopen the port once when it is found offline")
	flags.String("newline", "crlf", "Line terminator for line sends: crlf, lf, cr, none")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding flags: %v\n", err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetEnvPrefix("commport")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

// newLogger writes development-style logs when verbose and only warnings
// and errors otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
