// Shared helpers for almanac CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mesh-intelligence/almanac/internal/store"
	"github.com/mesh-intelligence/almanac/pkg/types"
)

// openStore opens the store from the resolved configuration. The caller
// must defer Close.
func openStore() (*store.Store, error) {
	config, err := storeConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(config, newLogger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// parseProps converts repeated key=value flag values into a property bag.
func parseProps(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("property %q is not key=value", pair)
		}
		props[key] = value
	}
	return props, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

// printCollection writes one collection in text form.
func printCollection(c *types.Collection) {
	fmt.Printf("%s\tkind=%s\trev=%d\n", c.Path, c.Kind, c.Revision)
	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, c.Properties[k])
	}
}

// readContent reads item content from a file argument, or stdin when the
// argument is "-" or absent.
func readContent(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
