package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"corestore/internal/config"
	"corestore/internal/engine"
	"corestore/internal/heap"
)

func newInspectCmd() *cobra.Command {
	var dbDir string
	var tableName string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print catalog and heap contents for a database directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.EnableLogging = false
			eng, err := engine.Open(dbDir, cfg)
			if err != nil {
				return fmt.Errorf("open %s: %w", dbDir, err)
			}
			defer eng.Close()

			names, err := eng.Catalog.ListTables()
			if err != nil {
				return err
			}
			if tableName != "" {
				names = filterName(names, tableName)
			}
			if len(names) == 0 {
				fmt.Println("no tables")
				return nil
			}

			for _, name := range names {
				info, err := eng.Catalog.GetTable(name)
				if err != nil {
					return err
				}
				fmt.Printf("table %q (heap first page %d, index header page %d)\n",
					name, info.HeapFirstPageID, info.IndexHeaderPageID)
				for _, col := range info.Schema.Columns {
					pk := ""
					if col.IsPrimaryKey {
						pk = " PRIMARY KEY"
					}
					fmt.Printf("  %-16s %-10s%s\n", col.Name, col.Type, pk)
				}

				table := heap.Open(eng.Buffer, eng.Txn, info.HeapFirstPageID)
				it := table.Iterator()
				rows := 0
				for {
					_, _, ok := it.Next()
					if !ok {
						break
					}
					rows++
				}
				it.Close()
				fmt.Printf("  %d live rows\n", rows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbDir, "db", "./data", "database directory")
	cmd.Flags().StringVar(&tableName, "table", "", "restrict to a single table (default: all tables)")
	return cmd
}

func filterName(names []string, want string) []string {
	for _, n := range names {
		if n == want {
			return []string{n}
		}
	}
	return nil
}
