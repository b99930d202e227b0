package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gotabs/adapters/excel"
	"gotabs/adapters/postgres"
	"gotabs/adapters/sqlite"
	"gotabs/app"
	"gotabs/domain/core"
	"gotabs/domain/run"
	"gotabs/internal/config"
	"gotabs/internal/errors"
	"gotabs/internal/logging"
	"gotabs/ports"
)

// version is stamped by the build. It feeds run fingerprints, so checkpoints
// never survive a code change.
var version = "dev"

func main() {
	// .env is optional; deployed environments set variables directly
	_ = godotenv.Load()

	// Ctrl-C lands between questions: the run checkpoints and exits, ready
	// for --resume.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "gotabs",
		Short: "Weighted cross-tabulation engine for survey data",
		Long: `gotabs produces banner-by-stub crosstab reports from survey data files:
weighted frequencies, significance letters, composite metrics and wave-over-wave
trackers, with checkpointed runs that resume after interruption.`,
		SilenceUsage: true,
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newRunCmd(&verbose),
		newValidateCmd(&verbose),
		newTrackCmd(&verbose),
		newVersionCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd(verbose *bool) *cobra.Command {
	var (
		structurePath string
		dataPath      string
		outputPath    string
		runID         string
		resume        bool
		parallel      int
		checkpointDSN string
	)

	cmd := &cobra.Command{
		Use:   "run [run-config.xlsx]",
		Short: "Run a full cross-tabulation pass",
		Long: `Run every stub question against the banner and render the report.

The run configuration workbook names the survey structure and data files;
flags override them. Progress is checkpointed after every question, so an
interrupted run continues with --resume.

Example: gotabs run configs/brand_tracker.xlsx --parallel 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap(*verbose)
			if err != nil {
				return err
			}
			store, closeStore, err := openCheckpointStore(cfg, checkpointDSN)
			if err != nil {
				return err
			}
			defer closeStore()

			parallelism := parallel
			if parallelism == 0 {
				parallelism = cfg.Run.Parallelism
			}

			svc := app.NewCrosstabService(excel.NewConfigLoader(), excel.NewDataReader(),
				store, excel.NewReportWriter(), version)
			result, err := svc.Run(cmd.Context(), app.RunRequest{
				StructurePath: structurePath,
				RunConfigPath: args[0],
				DataPath:      dataPath,
				OutputPath:    outputPath,
				RunID:         core.RunID(runID),
				Resume:        resume,
				Parallelism:   parallelism,
			})
			if err != nil {
				if cmd.Context().Err() != nil {
					fmt.Println("\nRun interrupted; progress checkpointed. Re-run with --resume to continue.")
				}
				return err
			}

			printRunSummary(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&structurePath, "structure", "", "survey structure workbook (defaults to the configured survey_structure_file)")
	cmd.Flags().StringVar(&dataPath, "data", "", "respondent data file (defaults to the configured data_file)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output workbook path (defaults to the configured output_filename)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (generated when empty; with --resume selects the checkpoint)")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the latest matching checkpoint")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent question workers (defaults to GOTABS_PARALLELISM)")
	cmd.Flags().StringVar(&checkpointDSN, "checkpoint", "", "checkpoint store: a sqlite path or a postgres:// URL")

	return cmd
}

func newValidateCmd(verbose *bool) *cobra.Command {
	var structurePath, dataPath string

	cmd := &cobra.Command{
		Use:   "validate [run-config.xlsx]",
		Short: "Check a configuration without tabulating",
		Long: `Load the run configuration and survey structure and report every problem
a run would hit. When the data file is reachable, the banner, weight variable
and question columns are checked against the actual data too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(*verbose); err != nil {
				return err
			}

			// validation never touches the checkpoint store or report writer
			svc := app.NewCrosstabService(excel.NewConfigLoader(), excel.NewDataReader(),
				nil, nil, version)
			result, err := svc.Validate(cmd.Context(), app.ValidateRequest{
				StructurePath: structurePath,
				RunConfigPath: args[0],
				DataPath:      dataPath,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Questions: %d\n", result.Questions)
			if result.Respondents > 0 {
				fmt.Printf("Respondents: %d\n", result.Respondents)
			}
			if result.BannerColumns > 0 {
				fmt.Printf("Banner columns: %d\n", result.BannerColumns)
			}
			if result.Valid {
				fmt.Println("✅ Configuration is valid")
				return nil
			}
			fmt.Printf("❌ %d problem(s) found:\n", len(result.Problems))
			for _, problem := range result.Problems {
				fmt.Printf("  - %s\n", problem)
			}
			return fmt.Errorf("configuration is not runnable")
		},
	}

	cmd.Flags().StringVar(&structurePath, "structure", "", "survey structure workbook (defaults to the configured survey_structure_file)")
	cmd.Flags().StringVar(&dataPath, "data", "", "respondent data file (defaults to the configured data_file)")

	return cmd
}

func newTrackCmd(verbose *bool) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "track [tracker-config.xlsx]",
		Short: "Run wave-over-wave trend analysis",
		Long: `Read every configured wave's data file, compute each tracked metric across
waves, test the movements and render the trend report.

Example: gotabs track configs/tracker.xlsx -o trends.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(*verbose); err != nil {
				return err
			}

			svc := app.NewTrackerService(excel.NewConfigLoader(), excel.NewDataReader(),
				excel.NewReportWriter())
			result, err := svc.Run(cmd.Context(), app.TrackRequest{
				ConfigPath: args[0],
				OutputPath: outputPath,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Tracked %d question(s) across %d waves\n", result.Series, result.Waves)
			if result.Warnings > 0 {
				fmt.Printf("Warnings: %d (see the report's log sheet)\n", result.Warnings)
			}
			fmt.Printf("Report: %s\n", result.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output workbook path (defaults to the configured output_filename)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gotabs version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gotabs %s\n", version)
		},
	}
}

// bootstrap loads environment configuration and initializes logging
func bootstrap(verbose bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(verbose || cfg.Logging.Verbose, cfg.Logging.Dir)
	return cfg, nil
}

// openCheckpointStore builds the configured checkpoint store. The --checkpoint
// flag overrides the environment: a postgres URL selects the postgres store,
// anything else is treated as a sqlite path.
func openCheckpointStore(cfg *config.Config, dsn string) (ports.CheckpointStore, func(), error) {
	driver := cfg.Checkpoint.Driver
	sqlitePath := cfg.Checkpoint.SQLitePath
	postgresURL := cfg.Checkpoint.PostgresURL
	if dsn != "" {
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			driver, postgresURL = "postgres", dsn
		} else {
			driver, sqlitePath = "sqlite", dsn
		}
	}

	if driver == "postgres" {
		store, err := postgres.NewCheckpointStore(postgresURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open postgres checkpoint store")
		}
		return store, func() { _ = store.Close() }, nil
	}
	store, err := sqlite.NewCheckpointStore(sqlitePath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open sqlite checkpoint store")
	}
	return store, func() { _ = store.Close() }, nil
}

func printRunSummary(result *app.RunResult) {
	marker := "✅"
	if result.State != run.StatePass {
		marker = "⚠️"
	}
	fmt.Printf("\n%s Run %s finished: %s\n", marker, result.RunID, strings.ToUpper(string(result.State)))
	fmt.Printf("Questions processed: %d\n", result.Processed)
	if len(result.Skipped) > 0 {
		fmt.Println("Skipped:")
		for _, skipped := range result.Skipped {
			fmt.Printf("  - %s: %s\n", skipped.Code, skipped.Reason)
		}
	}
	if result.Warnings > 0 {
		fmt.Printf("Warnings: %d (see the report's log sheet)\n", result.Warnings)
	}
	fmt.Printf("Report: %s\n", result.OutputPath)
	fmt.Printf("Runtime: %dms\n", result.RuntimeMs)
}
