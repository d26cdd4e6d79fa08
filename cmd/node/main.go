// Command node runs a single processor of the self-stabilizing
// reconfiguration service: the failure detector, RecSA, RecMA, the
// Joining Mechanism, the ABD register, and the HTTP introspection/control
// surface, all wired from environment-variable configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "node",
		Short: "Run a reconfiguration-service processor",
		Long: `node boots one processor of the self-stabilizing reconfiguration
service: the failure detector, RecSA, RecMA, the Joining Mechanism, the
ABD register, and the HTTP introspection/control surface.`,
	}

	var configPath string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the processor and block until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(configPath)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to an optional config.yaml overlay")
	root.AddCommand(runCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("node version %s (commit %s)\n", version, gitCommit)
		},
	})

	return root
}
