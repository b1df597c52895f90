package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the token refresh sweep on its schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "scheduler")
		if err != nil {
			return err
		}
		defer env.Close()

		sched := scheduler.New(env.Connections, cfg.Scheduler, env.Metrics)
		if once, _ := cmd.Flags().GetBool("once"); once {
			res, err := sched.Sweep(ctx)
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, res)
		}

		if err := sched.Start(ctx); err != nil {
			return err
		}
		zap.L().Info("scheduler running", zap.Time("next", sched.Next()))
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

func init() {
	schedulerCmd.Flags().Bool("once", false, "run a single sweep and exit")
	rootCmd.AddCommand(schedulerCmd)
}
