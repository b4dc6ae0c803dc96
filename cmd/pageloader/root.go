package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageloader/internal/config"
)

// NewRootCmd creates the root command for pageloader.
// The root command itself loads the pages given as arguments.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageloader [flags] <page-url>...",
		Short: "Save web pages with their local assets for offline viewing",
		Long: `pageloader downloads a web page together with the images, scripts and
stylesheets it loads from its own host. Asset references in the saved page
are rewritten to point at the local copies.

For https://example.com/courses the result is:
  example-com-courses.html          the rewritten page
  example-com-courses_files/        the downloaded assets

The absolute path of each saved page is printed on success. Any failure is
reported on stderr and the exit status is 1.

Examples:
  # Save a page into the current directory
  pageloader https://example.com/courses

  # Save into another directory
  pageloader -o /tmp/pages https://example.com/courses

  # Save several pages, two at a time, and print a JSON report
  pageloader -b 2 --json https://example.com/a https://example.com/b

  # Send requests through a SOCKS5 proxy at one request per second
  pageloader -x 127.0.0.1:1080 -r 1 https://example.com/courses

Configuration file (.pageloader) example:
  defaults:
    userAgent: "Mozilla/5.0 (compatible; pageloader)"
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      concurrency: 4`,
		Version:       getVersion(),
		Args:          cobra.MinimumNArgs(1),
		RunE:          runLoadCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the load history database")

	addLoadFlags(cmd)

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
