package cp

import (
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/kvcopy/cmd/util"
	"github.com/ValentinKolb/kvcopy/lib/runner"
	"github.com/ValentinKolb/kvcopy/lib/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	copyCmdConfig runner.Config
	CopyCmd       = &cobra.Command{
		Use:   "copy <source-url> <destination-url>",
		Short: "Copy keys from a source to a destination store",
		Long: `Copy all keys matching a pattern (or a list of keys) from the source store to the destination store.

Store urls:
  redis://[user:pass@]host:port/db   redis server (rediss:// for TLS)
  badger:///path/to/dir              badger database directory
  mem://[/path/to/snapshot]          in-memory store, optionally backed by a snapshot file

The configuration can be set via command line flags or environment variables. The format of the environment variables is KVCOPY_<flag> (e.g. KVCOPY_WORKERS=8)`,
		Args:    cobra.ExactArgs(2),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupRunFlags(CopyCmd)

	// add flags
	key := "verify"
	CopyCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Verify every key after copying it"))

	key = "replace"
	CopyCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Overwrite keys that already exist at the destination, if false existing keys are skipped"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := ui.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	var err error
	if copyCmdConfig, err = cmdUtil.GetRunnerConfig(); err != nil {
		return err
	}
	copyCmdConfig.Verify = viper.GetBool("verify")
	return nil
}

// run copies the keys, it stops early on SIGINT and SIGTERM
func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmdUtil.Run(ctx, copyCmdConfig, args[0], args[1])
}
