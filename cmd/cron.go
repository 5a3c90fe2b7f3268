package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"mes.GO/cron"
)

var jobName string

var cronStartCmd = &cobra.Command{
	Use:   "cron:start",
	Short: "Start the cron scheduler or run a single job by name",
	Run: func(cmd *cobra.Command, args []string) {
		cont, closeFn, err := openContainer()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			exitFunc(1)
			return
		}
		defer closeFn()

		s := cron.NewScheduler(cont)
		name := strings.ToLower(jobName)
		if err := s.AddRegistered(name); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			exitFunc(1)
			return
		}
		if name != "" {
			fmt.Printf("Running cron job: %s\n", name)
			err := s.RunJob(cmd.Context(), name)
			s.Stop()
			if err != nil {
				fmt.Printf("Job %s failed: %v\n", name, err)
				exitFunc(1)
			}
			return
		}

		figure.NewFigure("MES cron", "small", true).Print()
		fmt.Printf("Scheduled jobs: %s\n", strings.Join(s.Names(), ", "))
		s.Start()
		fmt.Println("Cron scheduler started. Press Ctrl+C to exit.")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		fmt.Println("Stopping scheduler...")
		s.Stop()
	},
}

func init() {
	cronStartCmd.Flags().StringVarP(&jobName, "job", "j", "", "Run a single cron job by name and exit")
	rootCmd.AddCommand(cronStartCmd)
}
