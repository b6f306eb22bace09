// Token command prints a collection's current sync token.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token PATH",
	Short: "Print the collection's current sync token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		token, err := s.SyncToken(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]int64{"token": token})
		}
		fmt.Println(token)
		return nil
	},
}
