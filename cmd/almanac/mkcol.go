// Mkcol command creates a collection.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

var (
	mkcolKind  string
	mkcolProps []string
)

var mkcolCmd = &cobra.Command{
	Use:   "mkcol PATH",
	Short: "Create a collection",
	Long: `Mkcol creates a collection at the given path. The parent collection
must already exist unless create_parents is enabled in the configuration.

Example:
  almanac mkcol home/work --kind calendar --prop displayname="Work"
  almanac mkcol home/contacts --kind addressbook`,
	Args: cobra.ExactArgs(1),
	RunE: runMkcol,
}

func init() {
	mkcolCmd.Flags().StringVar(&mkcolKind, "kind", types.KindCollection, "collection kind: calendar, addressbook, or collection")
	mkcolCmd.Flags().StringArrayVar(&mkcolProps, "prop", nil, "collection property as key=value (repeatable)")
}

func runMkcol(cmd *cobra.Command, args []string) error {
	props, err := parseProps(mkcolProps)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.CreateCollection(cmd.Context(), args[0], mkcolKind, props)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(c)
	}
	fmt.Printf("Created %s collection: %s\n", c.Kind, c.Path)
	return nil
}
