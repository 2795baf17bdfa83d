package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <source-file>",
	Short: "Remove every chunk of a source file from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		removed, err := a.coord.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		if removed == 0 {
			fmt.Printf("no chunks found for %s\n", args[0])
			return nil
		}
		fmt.Printf("removed %d chunks of %s\n", removed, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
