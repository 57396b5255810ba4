package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docchat/pkg/loader"
)

var extensionsCmd = &cobra.Command{
	Use:   "extensions [root]",
	Short: "List the file extensions found under the documentation root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var root string
		if len(args) > 0 {
			root = args[0]
		}
		l := newLoader(config, root)

		counts, err := loader.CountExtensions(l.Root())
		if err != nil {
			return err
		}

		exts := make([]string, 0, len(counts))
		for ext := range counts {
			exts = append(exts, ext)
		}
		sort.Strings(exts)

		fmt.Printf("File extensions under %s:\n", l.Root())
		for _, ext := range exts {
			name := "." + ext
			if ext == "" {
				name = "(none)"
			}
			line := fmt.Sprintf("  %-8s %d", name, counts[ext])
			if l.Supports("file." + ext) {
				color.Green("%s", line)
			} else {
				fmt.Printf("%s  (skipped)\n", line)
			}
		}
		return nil
	},
}
