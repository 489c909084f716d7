// Package cli implements the sagaflow command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fortressi/sagaflow/internal/config"
	"github.com/fortressi/sagaflow/internal/logger"
)

// app is the state shared by every subcommand of one root command.
type app struct {
	v          *viper.Viper
	configFile string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand creates the sagaflow root command.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "sagaflow",
		Short: "Run order checkout sagas against simulated collaborators",
		Long: `sagaflow runs the order checkout saga: create the order, reserve
inventory, deduct payment, create the shipment and notify the customer.
When a step fails, every step that already completed is compensated in
reverse order and compensation failures are reported as dead letters.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.syncLogger() },
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newRunCommand(a),
		newStepsCommand(a),
		newDeadLettersCommand(a),
	)
	return cmd
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = log
	return nil
}

// syncLogger flushes buffered log entries. Sync errors on a terminal's
// stderr are expected and ignored.
func (a *app) syncLogger() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) bindFlag(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s to %s: %v", flag.Name, key, err))
	}
}
