// Command dispatchmux runs a dispatcher worker from a YAML config file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatchmux",
		Short: "Run a message-bus dispatcher worker",
		Long: `dispatchmux routes bearer traffic (SMS, XMPP, USSD, HTTP, ...) between
transports and application endpoints over a pluggable message bus.`,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dispatchmux version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// version is overridden at build time via -ldflags.
var version = "dev"
