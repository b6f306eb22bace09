// Ls command lists collections and items.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsItems bool

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List child collections, or items with --items",
	Long: `Ls lists the child collections of the given path, or the items inside
the collection when --items is set. Without a path it lists the top-level
collections.

Example:
  almanac ls
  almanac ls home
  almanac ls home/work --items`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsItems, "items", false, "list items instead of child collections")
}

func runLs(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if lsItems {
		infos, err := s.ListItems(cmd.Context(), path)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(infos)
		}
		for _, info := range infos {
			fmt.Printf("%s\t%s\t%s\n", info.Name, info.ETag, info.Modified.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	collections, err := s.ListCollections(cmd.Context(), path)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(collections)
	}
	for _, c := range collections {
		printCollection(c)
	}
	return nil
}
