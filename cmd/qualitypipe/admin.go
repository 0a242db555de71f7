package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dataste0/quality-pipeline/internal/database"
)

// --- queue command ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and administer the work queue",
}

var (
	queueMode  string
	queueLimit int
)

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue items, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListItems(queueMode, queueLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No items.")
			return nil
		}
		for _, it := range items {
			synced := ""
			if it.OlapSync {
				synced = " synced"
			}
			fmt.Printf("  [%d] %-11s%s  %s %s  %s\n", it.ID, it.Status, synced, it.ProjectID, it.DataWeek, it.Filename)
		}
		return nil
	},
}

var queueCountCmd = &cobra.Command{
	Use:   "count [mode]",
	Short: "Count items in a mode (enqueued, processing, failed, olap_sync_ready)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := database.ModeEnqueued
		if len(args) == 1 {
			mode = args[0]
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Count(mode)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var queueShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one item with its diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		it, err := db.GetItem(id)
		if err != nil {
			return err
		}
		fmt.Printf("Item %d\n", it.ID)
		fmt.Printf("  Project: %s %s\n", it.ProjectID, it.ProjectName)
		fmt.Printf("  Data week: %s\n", it.DataWeek)
		fmt.Printf("  File: %s\n", it.Filename)
		fmt.Printf("  Hash: %s\n", it.FileHash)
		fmt.Printf("  Snapshot: %d\n", it.SnapshotID)
		fmt.Printf("  Status: %s\n", it.Status)
		fmt.Printf("  Synced: %v\n", it.OlapSync)
		if it.StartedAt != nil {
			fmt.Printf("  Started: %s\n", *it.StartedAt)
		}
		if it.FinishedAt != nil {
			fmt.Printf("  Finished: %s\n", *it.FinishedAt)
		}
		if len(it.ContentWeeks) > 0 {
			fmt.Printf("  Content weeks: %s\n", strings.Join(it.ContentWeeks, ", "))
		}
		for _, name := range it.OutputFilenames {
			fmt.Printf("  Output: %s\n", name)
		}
		if it.TransformInfo != "" {
			var info any
			if err := json.Unmarshal([]byte(it.TransformInfo), &info); err == nil {
				pretty, _ := json.MarshalIndent(info, "  ", "  ")
				fmt.Printf("  Info: %s\n", pretty)
			} else {
				fmt.Printf("  Info: %s\n", it.TransformInfo)
			}
		}
		return nil
	},
}

var queueRequeueCmd = &cobra.Command{
	Use:   "requeue [id]...",
	Short: "Return processing or failed items to enqueued",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			if err := db.Requeue(id); err != nil {
				return err
			}
			fmt.Printf("Requeued item %d\n", id)
		}
		return nil
	},
}

var queueReclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Return processing items older than the lease to enqueued",
	RunE: func(cmd *cobra.Command, args []string) error {
		lease := cfg.Queue.ProcessingLease
		if cmd.Flags().Changed("lease") {
			lease = reclaimLease
		}
		if lease <= 0 {
			return fmt.Errorf("reclaim needs a positive lease (queue.processing_lease or --lease)")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ReclaimStale(lease)
		if err != nil {
			return err
		}
		fmt.Printf("Reclaimed %d items older than %s\n", n, lease)
		return nil
	},
}

var reclaimLease time.Duration

func init() {
	queueListCmd.Flags().StringVar(&queueMode, "mode", "", "Only items in this mode (enqueued, processing, failed, olap_sync_ready)")
	queueListCmd.Flags().IntVarP(&queueLimit, "limit", "n", 50, "Maximum number of items")
	queueReclaimCmd.Flags().DurationVar(&reclaimLease, "lease", 0, "Override queue.processing_lease")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueCountCmd)
	queueCmd.AddCommand(queueShowCmd)
	queueCmd.AddCommand(queueRequeueCmd)
	queueCmd.AddCommand(queueReclaimCmd)
}

// --- snapshot command ---

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect stored snapshots",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.ListSnapshots(20)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots. Run 'qualitypipe run --mode snapshot' to take one.")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("  [%d] %s  %d weeks, %d projects, %d with data, %d valid files\n",
				s.ID, s.CreatedAt, s.Entries, s.Projects, s.WeeksWithData, s.ValidFiles)
		}
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the entries of a snapshot (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var id int64
		if len(args) == 1 {
			if id, err = parseID(args[0]); err != nil {
				return err
			}
		} else if id, err = db.LatestSnapshotID(); err != nil {
			return err
		}
		if id == 0 {
			fmt.Println("No snapshots.")
			return nil
		}

		entries, err := db.GetSnapshot(id)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("%w: snapshot %d", database.ErrNotFound, id)
		}
		fmt.Printf("Snapshot %d (%s)\n", id, entries[0].CreatedAt)
		for _, e := range entries {
			fmt.Printf("  %s %s  %s  %d files, %d valid\n",
				e.ProjectID, e.DataWeek, e.FolderHash, len(e.Files), len(e.ValidFiles))
			for _, f := range e.Files {
				mark := "-"
				if f.Valid() {
					mark = "+"
				}
				fmt.Printf("      %s %s\n", mark, f.Filename)
			}
		}
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
}

// --- export command ---

var exportOut string

var exportCmd = &cobra.Command{
	Use:       "export [snapshots|queue]",
	Short:     "Export the snapshot or queue log as CSV",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"snapshots", "queue"},
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var w io.Writer = os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("creating %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		var n int
		switch args[0] {
		case "snapshots":
			n, err = db.ExportSnapshots(w)
		case "queue":
			n, err = db.ExportQueue(w)
		}
		if err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("Wrote %d rows to %s\n", n, exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID: %s", s)
	}
	return id, nil
}
