package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"corestore/internal/catalog"
	"corestore/internal/config"
	"corestore/internal/engine"
	"corestore/internal/execution"
	"corestore/internal/execution/insert"
	"corestore/internal/execution/scan"
	"corestore/internal/heap"
)

func newBenchCmd() *cobra.Command {
	var dbDir string
	var rows int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert then scan a throwaway table and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			eng, err := engine.Open(dbDir, cfg)
			if err != nil {
				return fmt.Errorf("open %s: %w", dbDir, err)
			}
			defer eng.Close()

			tableName := fmt.Sprintf("bench_%d", time.Now().UnixNano())
			tx := eng.Txn.Begin()
			table, err := heap.Create(eng.Buffer, eng.Txn, tx)
			if err != nil {
				return fmt.Errorf("create heap: %w", err)
			}
			if err := eng.Txn.Commit(tx); err != nil {
				return err
			}
			if err := eng.Catalog.CreateTable(catalog.TableInfo{
				Schema: catalog.TableSchema{
					TableName: tableName,
					Columns: []catalog.ColumnDef{
						{Name: "id", Type: "int", IsPrimaryKey: true},
						{Name: "value", Type: "string"},
					},
				},
				HeapFirstPageID: table.FirstPageID(),
			}); err != nil {
				return fmt.Errorf("register bench table: %w", err)
			}

			insertRows := make([]execution.Row, rows)
			for i := 0; i < rows; i++ {
				insertRows[i] = execution.Row{"id": float64(i), "value": fmt.Sprintf("row-%d", i)}
			}

			insertTx := eng.Txn.Begin()
			ins := insert.NewValues(table, insertTx, insertRows)
			start := time.Now()
			if err := ins.Init(); err != nil {
				return err
			}
			summary, _, err := ins.Next()
			ins.Close()
			if err != nil {
				return err
			}
			if err := eng.Txn.Commit(insertTx); err != nil {
				return err
			}
			insertElapsed := time.Since(start)

			seq := scan.New(table, nil)
			if err := seq.Init(); err != nil {
				return err
			}
			scanStart := time.Now()
			scanned := 0
			for {
				_, ok, err := seq.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				scanned++
			}
			seq.Close()
			scanElapsed := time.Since(scanStart)

			fmt.Printf("inserted %v rows in %v (%s/row)\n", summary["inserted"], insertElapsed, humanize.SIWithDigits(float64(insertElapsed)/float64(rows), 1, "s"))
			fmt.Printf("scanned %d rows in %v (%s/row)\n", scanned, scanElapsed, humanize.SIWithDigits(float64(scanElapsed)/float64(rows), 1, "s"))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbDir, "db", "./data", "database directory")
	cmd.Flags().IntVar(&rows, "rows", 10000, "number of rows to insert and scan")
	return cmd
}
