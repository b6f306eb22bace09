// Rm command deletes an item.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmIfMatch string

var rmCmd = &cobra.Command{
	Use:   "rm PATH NAME",
	Short: "Delete an item",
	Long: `Rm deletes the named item. With --if-match the delete only succeeds
while the stored item still carries the given etag.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteItem(cmd.Context(), args[0], args[1], rmIfMatch); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{"deleted": args[1]})
		}
		fmt.Printf("Deleted %s\n", args[1])
		return nil
	},
}

func init() {
	rmCmd.Flags().StringVar(&rmIfMatch, "if-match", "", "required current etag of the stored item")
}
