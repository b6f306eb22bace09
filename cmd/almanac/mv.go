// Mv command moves an item between collections or names.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv FROM_PATH FROM_NAME TO_PATH TO_NAME",
	Short: "Move an item",
	Long: `Mv relocates an item to another collection or name in one transaction.
The source records a deletion and the destination a creation or update, so
sync clients on both collections pick up the move incrementally.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		item, err := s.MoveItem(cmd.Context(), args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{
				"path": args[2],
				"name": item.Name,
				"etag": item.ETag,
			})
		}
		fmt.Printf("Moved %s/%s to %s/%s (etag %s)\n", args[0], args[1], args[2], args[3], item.ETag)
		return nil
	},
}
