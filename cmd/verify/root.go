package verify

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
	verifyCmdConfig runner.Config
	VerifyCmd       = &cobra.Command{
		Use:   "verify <source-url> <destination-url>",
		Short: "Check that the destination holds the same keys as the source",
		Long: `Compare every key matching a pattern (or a list of keys) of the source store with the destination store. Values and expiry are compared, nothing is written.

The store urls are the same as for the copy command. The strategy flag is used to pick the comparison (both strategies compare the same way, 'new' fails for incompatible stores).`,
		Args:    cobra.ExactArgs(2),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupRunFlags(VerifyCmd)
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := ui.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	var err error
	if verifyCmdConfig, err = cmdUtil.GetRunnerConfig(); err != nil {
		return err
	}
	verifyCmdConfig.VerifyOnly = true
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmdUtil.Run(ctx, verifyCmdConfig, args[0], args[1])
}
