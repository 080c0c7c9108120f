package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"specforge/internal/logging"
	"specforge/internal/resolve"
)

var resolveAutoEnrich bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <template>",
	Short: "Print the template path to load, preferring an enriched derivative",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveAutoEnrich, "auto-enrich", false, "Fail when no enriched derivative exists")
}

func runResolve(cmd *cobra.Command, args []string) error {
	result, err := resolve.New(loggers.Get(logging.CategoryResolve)).ResolvePath(args[0], resolve.Options{AutoEnrich: resolveAutoEnrich})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Path)
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}
