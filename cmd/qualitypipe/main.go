package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dataste0/quality-pipeline/internal/adapter"
	"github.com/Dataste0/quality-pipeline/internal/adapter/adhoc"
	"github.com/Dataste0/quality-pipeline/internal/config"
	"github.com/Dataste0/quality-pipeline/internal/database"
	"github.com/Dataste0/quality-pipeline/internal/fingerprint"
	"github.com/Dataste0/quality-pipeline/internal/logging"
	"github.com/Dataste0/quality-pipeline/internal/pipeline"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/server"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "qualitypipe",
	Short:   "Incremental normalization of vendor quality exports",
	Long:    "qualitypipe detects new vendor labeling and audit exports, normalizes them into canonical quality records and hands them to the reporting store.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "INFO"
		if verbose {
			level = "DEBUG"
		}
		if err := logging.Setup(level, logging.FormatText, os.Stderr); err != nil {
			return err
		}

		// Skip config loading for commands that work without one
		switch cmd.Name() {
		case "init", "version", "fingerprint":
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !verbose {
			level = cfg.Logging.Level
		}
		return logging.Setup(level, cfg.Logging.Format, os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("qualitypipe", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/qualitypipe/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at the raw data root and the project master list.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and snapshot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetQueueStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Store: %s\n\n", db.Path())
		fmt.Println("Queue:")
		fmt.Printf("  Enqueued: %d\n", stats.Enqueued)
		fmt.Printf("  Processing: %d\n", stats.Processing)
		fmt.Printf("  Transformed: %d\n", stats.Transformed)
		fmt.Printf("  Failed: %d\n", stats.Failed)
		fmt.Printf("  Ready for sync: %d\n", stats.SyncReady)
		fmt.Printf("  Synced: %d\n", stats.Synced)

		snaps, err := db.ListSnapshots(1)
		if err != nil {
			return err
		}
		fmt.Println("\nLatest snapshot:")
		if len(snaps) == 0 {
			fmt.Println("  none")
		} else {
			s := snaps[0]
			fmt.Printf("  #%d at %s: %d weeks in %d projects, %d with data, %d valid files\n",
				s.ID, s.CreatedAt, s.Entries, s.Projects, s.WeeksWithData, s.ValidFiles)
		}

		reports, err := db.ListRunReports(5)
		if err != nil {
			return err
		}
		fmt.Println("\nRecent runs:")
		if len(reports) == 0 {
			fmt.Println("  none")
		}
		for _, r := range reports {
			state := "ok"
			if !r.OK {
				state = "failed"
			}
			dry := ""
			if r.DryRun {
				dry = " (dry run)"
			}
			fmt.Printf("  %s  %-9s %s%s  %s\n", r.StartedAt, r.Mode, state, dry, r.ID)
		}
		return nil
	},
}

// --- run command ---

var (
	dryRun  bool
	runMode string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline: snapshot -> enqueue -> transform -> sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := pipeline.ParseMode(runMode)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		pipe := pipeline.New(cfg, db, catalog, newRegistry())
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(mode)
		} else {
			result = pipe.Run(ctx, mode)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Summary != "" {
				fmt.Printf("  %s\n", step.Summary)
			}
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			}
		}

		fmt.Printf("\nRun %s recorded.\n", result.RunID)
		if !result.OK() {
			return fmt.Errorf("run finished with errors")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().StringVar(&runMode, "mode", "auto", "Phases to run: auto, snapshot, enqueue, transform or sync")
}

// --- fingerprint command ---

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <file>...",
	Short: "Print the header fingerprint used as dataset_fingerprint",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			header, err := table.ReadHeader(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s  %s\n", fingerprint.Header(header), path)
			if verbose {
				fmt.Printf("  columns: %s\n", strings.Join(header, ", "))
			}
		}
		return nil
	},
}

// --- projects command ---

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects from the master list and check their configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := project.LoadMaster(cfg.GetMasterFile(), cfg.Paths.MasterSheet)
		if err != nil {
			return err
		}
		reg := newRegistry()
		root := cfg.GetRawRoot()

		fmt.Printf("%d projects loaded, %d rows skipped\n\n", res.Catalog.Len(), res.Skipped)
		for _, p := range res.Catalog.All() {
			tracked := ""
			if !p.TrackData {
				tracked = " (not tracked)"
			}
			fmt.Printf("  %s  %s  base=%s target=%g%s\n", p.ID, p.Name, p.Base, p.Target, tracked)
			for _, problem := range checkProject(p, reg, root) {
				fmt.Printf("      ! %s\n", problem)
			}
		}

		if len(res.Warnings) > 0 {
			fmt.Println("\nWarnings:")
			for _, w := range res.Warnings {
				fmt.Printf("  %s\n", w)
			}
		}
		return nil
	},
}

// checkProject lists configuration problems that would make a project's
// files fail to scan or transform.
func checkProject(p project.Project, reg *adapter.Registry, root string) []string {
	var problems []string
	if p.Base == "" {
		problems = append(problems, "no base methodology")
	}
	if len(p.Formats) == 0 {
		problems = append(problems, "no file formats configured")
	}
	for i, f := range p.Formats {
		if _, err := f.Filter.Compile(); err != nil {
			problems = append(problems, fmt.Sprintf("format %d: %v", i+1, err))
		}
		if f.Fingerprint == "" {
			problems = append(problems, fmt.Sprintf("format %d: no dataset_fingerprint", i+1))
		}
		if _, err := reg.Select(p.ID, f.Module); err != nil {
			problems = append(problems, fmt.Sprintf("format %d: %v", i+1, err))
		}
	}
	if p.TrackData {
		if _, err := p.Folder(root); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local status dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func newRegistry() *adapter.Registry {
	reg := adapter.Standard()
	adhoc.Register(reg)
	return reg
}

func loadCatalog() (*project.Catalog, error) {
	res, err := project.LoadMaster(cfg.GetMasterFile(), cfg.Paths.MasterSheet)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		slog.Warn("master list", "problem", w)
	}
	return res.Catalog, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := database.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	db.SetLockTimeout(cfg.Queue.LockTimeout)
	return db, nil
}
