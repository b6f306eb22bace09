// Props command replaces a collection's properties.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var propsSet []string

var propsCmd = &cobra.Command{
	Use:   "props PATH",
	Short: "Show or replace collection properties",
	Long: `Props prints the collection's properties. With --set the property bag
is replaced wholesale and the collection revision advances.

Example:
  almanac props home/work
  almanac props home/work --set displayname="Work" --set color="#ff8800"`,
	Args: cobra.ExactArgs(1),
	RunE: runProps,
}

func init() {
	propsCmd.Flags().StringArrayVar(&propsSet, "set", nil, "property as key=value (repeatable); replaces the whole bag")
}

func runProps(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if len(propsSet) == 0 {
		c, err := s.GetCollection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(c.Properties)
		}
		printCollection(c)
		return nil
	}

	props, err := parseProps(propsSet)
	if err != nil {
		return err
	}
	c, err := s.SetProperties(cmd.Context(), args[0], props)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(c)
	}
	fmt.Printf("Updated properties of %s (rev %d)\n", c.Path, c.Revision)
	return nil
}
