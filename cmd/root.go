package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/kvcopy/cmd/cp"
	"github.com/ValentinKolb/kvcopy/cmd/util"
	"github.com/ValentinKolb/kvcopy/cmd/verify"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvcopy",
		Short: "copy keys between key-value stores",
		Long: fmt.Sprintf(`kvcopy (v%s)

Copies keys from a source key-value store to a destination store, preserving
value types and expiry, and verifies the result. Supported stores are redis,
badger and an in-memory store.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvcopy",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvcopy v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(cp.CopyCmd)
	RootCmd.AddCommand(verify.VerifyCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
	key = "codec"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("codec used to encode values of the badger and memory stores (json, gob, binary)"))
	key = "timeout"
	RootCmd.PersistentFlags().Duration(key, util.DefaultTimeout, util.WrapString("dial, read and write timeout of network stores"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
