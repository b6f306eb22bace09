// Changes command reports item events since a sync token.
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes PATH [TOKEN]",
	Short: "List item changes since a sync token",
	Long: `Changes prints the item events recorded after the given sync token,
oldest first, followed by the current token. Token 0 (the default) returns
the full current state as created events.

Example:
  almanac changes home/work
  almanac changes home/work 42`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runChanges,
}

func runChanges(cmd *cobra.Command, args []string) error {
	var token int64
	if len(args) == 2 {
		parsed, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("sync token %q is not a number", args[1])
		}
		token = parsed
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	changes, err := s.ChangesSince(cmd.Context(), args[0], token)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(changes)
	}
	for _, e := range changes.Entries {
		fmt.Printf("%d\t%s\t%s\n", e.Revision, e.Change, e.ItemName)
	}
	fmt.Printf("token: %d\n", changes.Token)
	return nil
}
