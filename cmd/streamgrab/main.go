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
	// We create a context that is cancelled when the user hits Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "streamgrab [quality] [bandwidthMB]",
		Short: "Download the video behind each configured page, one page at a time",
		Long: "streamgrab opens every page listed under 'jobs' in a headless browser, waits for the\n" +
			"player to request its stream and saves that stream to the output directory.\n\n" +
			"quality      preferred stream variant, e.g. 1080p (default from config, 1080p)\n" +
			"bandwidthMB  download speed limit in MB/s, 0 for unlimited (default from config, 11)",
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.args = args
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the config file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "serve the status API and metrics on this address, e.g. 127.0.0.1:8090")

	return cmd
}
