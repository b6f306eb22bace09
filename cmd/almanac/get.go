// Get command prints an item's content.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get PATH NAME",
	Short: "Print an item's content",
	Long: `Get writes the raw iCalendar or vCard content of the named item to
stdout. With --json the item metadata and content are printed as JSON.

Example:
  almanac get home/work standup.ics`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		item, err := s.GetItem(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]any{
				"name":     item.Name,
				"etag":     item.ETag,
				"modified": item.UpdatedAt,
				"content":  string(item.Content),
			})
		}
		_, err = os.Stdout.Write(item.Content)
		if err != nil {
			return fmt.Errorf("write content: %w", err)
		}
		return nil
	},
}
