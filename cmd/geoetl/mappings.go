package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"geoetl/internal/config"
	"geoetl/internal/schemamap"
)

func newMappingsCommand(stdout, stderr io.Writer) *cobra.Command {
	var workbook string
	cmd := &cobra.Command{
		Use:   "mappings [dataset]",
		Short: "Show the sheets of a mapping workbook or the renames for one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if workbook == "" {
				workbook = os.Getenv(config.EnvMappingWorkbook)
			}
			if workbook == "" {
				return fatal("--workbook or %s is required", config.EnvMappingWorkbook)
			}
			x, err := schemamap.OpenExcel(workbook)
			if err != nil {
				return fatal("%w", err)
			}
			defer x.Close()

			m := schemamap.NewMapper(x, log.New(stderr, "", 0))
			if len(args) == 0 {
				for _, s := range m.SheetNames() {
					fmt.Fprintln(stdout, s)
				}
				return nil
			}

			mp := m.Lookup(args[0])
			if mp.Sheet == "" {
				fmt.Fprintf(stdout, "dataset %q: no sheet; fields load unchanged\n", args[0])
				return nil
			}
			fmt.Fprintf(stdout, "dataset %q: sheet %q, %d renames\n", args[0], mp.Sheet, len(mp.Pairs))
			for _, p := range mp.Pairs {
				fmt.Fprintf(stdout, "%s -> %s\n", p.Old, p.New)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workbook, "workbook", "w", "", "mapping workbook (.xlsx); defaults to "+config.EnvMappingWorkbook)
	return cmd
}
