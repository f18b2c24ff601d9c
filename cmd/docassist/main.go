// Command docassist runs the blood report analysis service and its terminal
// client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "docassist",
		Short:         "Blood report prediction workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "log at info level")

	root.AddCommand(
		newServeCommand(),
		newUploadCommand(),
		newManualCommand(),
		newMigrateCommand(),
		newVersionCommand(),
	)
	return root
}
