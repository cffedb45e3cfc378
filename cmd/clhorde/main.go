package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "clhorde",
		Short:        "clhorde — queue prompts for a fleet of claude workers",
		SilenceUsage: true,
	}

	root.AddCommand(
		submitCmd(),
		statusCmd(),
		outputCmd(),
		storeCmd(),
		cleanWorktreesCmd(),
		watchCmd(),
		pingCmd(),
		shutdownCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clhorde: %v\n", err)
		os.Exit(1)
	}
}
