// Birthdays command group: enable and disable derived birthday calendars.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var birthdaysCmd = &cobra.Command{
	Use:   "birthdays",
	Short: "Manage derived birthday calendars",
}

var birthdaysEnableCmd = &cobra.Command{
	Use:   "enable SOURCE DERIVED",
	Short: "Derive a birthday calendar from an address book",
	Long: `Enable creates a calendar at DERIVED holding one yearly event per
contact in the SOURCE address book that has a birthday. The calendar is
recomputed automatically whenever the address book changes and cannot be
written to directly.

Example:
  almanac birthdays enable home/contacts home/contact-birthdays`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		derived, err := s.EnableBirthdays(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(derived)
		}
		fmt.Printf("Birthday calendar %s now follows %s\n", derived.Path, args[0])
		return nil
	},
}

var birthdaysDisableCmd = &cobra.Command{
	Use:   "disable SOURCE",
	Short: "Remove the birthday calendar derived from an address book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DisableBirthdays(cmd.Context(), args[0]); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{"disabled": args[0]})
		}
		fmt.Printf("Birthday calendar for %s removed\n", args[0])
		return nil
	},
}

func init() {
	birthdaysCmd.AddCommand(birthdaysEnableCmd)
	birthdaysCmd.AddCommand(birthdaysDisableCmd)
}
