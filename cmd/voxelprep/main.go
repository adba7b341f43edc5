package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mrsinham/voxelprep/cmd/voxelprep/wizard"
	"github.com/mrsinham/voxelprep/internal/config"
	"github.com/mrsinham/voxelprep/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags
var version = "dev"

var (
	configPath string
	verbose    bool
	fromConfig string
)

var rootCmd = &cobra.Command{
	Use:   "voxelprep",
	Short: "Configurable preprocessing pipeline for volumetric medical images",
	Long: `voxelprep runs a configurable batch preprocessing pipeline over
MRI volumes (DICOM and NIfTI): quality control, bias field correction,
resampling, registration, skull stripping, denoising, normalization,
filtering and binning, in a fixed order controlled by a config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the preprocessing pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger, closeLog, err := newLogger(verbose)
		if err != nil {
			return err
		}
		defer closeLog()

		fmt.Printf("Experiment: %s\n\n", cfg.ExperimentName)
		config.WriteSummary(os.Stdout, cfg)
		fmt.Println()

		summary, err := pipeline.New(cfg, logger, pipeline.ConsoleReporter{W: os.Stdout}).Run()
		if err != nil {
			return err
		}
		fmt.Printf("\nProcessed %d image(s), %d with errors.\n",
			len(summary.Images), summary.Failures())
		return nil
	},
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Configure and launch a run interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wizard.Run(fromConfig)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxelprep %s\n", version)
	},
}

// newLogger builds the run logger: console output plus a preprocessing.log
// file when it can be created.
func newLogger(verbose bool) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	closeLog := func() {}

	var w io.Writer = console
	if f, err := os.OpenFile("preprocessing.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		w = zerolog.MultiLevelWriter(console, f)
		closeLog = func() { f.Close() }
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closeLog, nil
}

func main() {
	runCmd.Flags().StringVar(&configPath, "config_path", "config/pipeline.yaml", "Path to the pipeline configuration file")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	wizardCmd.Flags().StringVar(&fromConfig, "from", "", "Prefill the wizard from an existing configuration file")

	rootCmd.AddCommand(runCmd, wizardCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
