// Rmcol command deletes a collection subtree.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmcolCmd = &cobra.Command{
	Use:   "rmcol PATH",
	Short: "Delete a collection and everything under it",
	Long: `Rmcol deletes the collection at the given path together with its
descendant collections, their items, and any derived calendars generated
from them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteCollection(cmd.Context(), args[0]); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{"deleted": args[0]})
		}
		fmt.Printf("Deleted collection: %s\n", args[0])
		return nil
	},
}
