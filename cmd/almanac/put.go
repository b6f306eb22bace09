// Put command creates or replaces an item.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var putIfMatch string

var putCmd = &cobra.Command{
	Use:   "put PATH NAME [FILE]",
	Short: "Create or replace an item",
	Long: `Put writes the content of FILE (or stdin when FILE is absent or "-")
as the named item. With --if-match the write only succeeds while the stored
item still carries the given etag.

Example:
  almanac put home/work standup.ics standup.ics
  cat ada.vcf | almanac put home/contacts ada.vcf
  almanac put home/work standup.ics new.ics --if-match 2c26b46b`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVar(&putIfMatch, "if-match", "", "required current etag of the stored item")
}

func runPut(cmd *cobra.Command, args []string) error {
	file := ""
	if len(args) == 3 {
		file = args[2]
	}
	content, err := readContent(file)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	item, err := s.PutItem(cmd.Context(), args[0], args[1], content, putIfMatch)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(map[string]string{"name": item.Name, "etag": item.ETag})
	}
	fmt.Printf("Stored %s (etag %s)\n", item.Name, item.ETag)
	return nil
}
