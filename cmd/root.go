package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mes.GO/config"
	"mes.GO/core/container"
)

var rootCmd = &cobra.Command{
	Use:   "mes",
	Short: "MES production reporting pipeline tools",
}

// exitFunc ends the process with a command's exit code. Tests replace it.
var exitFunc = os.Exit

// openContainer connects to the configured database and builds the services.
// The returned func releases the connection.
var openContainer = func() (*container.Container, func(), error) {
	cfg := config.App()
	log := config.InitLogger()
	db, err := config.NewDB()
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	config.InitRedis()
	config.PingRedis()
	c := container.New(db, cfg, log, container.Options{Redis: config.RedisClient})
	return c, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		_ = log.Sync()
	}, nil
}

// Execute applies registered commands and runs the root command.
func Execute() {
	Apply()
	if err := rootCmd.Execute(); err != nil {
		exitFunc(2)
	}
}

// RunFunc is a command body with the services opened. It returns the exit code.
type RunFunc func(ctx context.Context, c *container.Container, out io.Writer) int

// WithContainer adapts fn into a cobra Run that opens the services, runs fn
// and exits with its code. A failed open exits 1.
func WithContainer(fn RunFunc) func(*cobra.Command, []string) {
	return WithContainerExit(1, fn)
}

// WithContainerExit is WithContainer for commands whose exit codes are part of
// their contract: openFailCode is used when the services cannot be opened.
func WithContainerExit(openFailCode int, fn RunFunc) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		cont, closeFn, err := openContainer()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			exitFunc(openFailCode)
			return
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		code := fn(ctx, cont, cmd.OutOrStdout())
		closeFn()
		exitFunc(code)
	}
}
