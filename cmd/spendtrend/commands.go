package main

import (
	"github.com/spf13/cobra"

	"spendtrend/internal/config"
)

var (
	configPath string
	outputDir  string
	logLevel   string
	jsonOutput bool
	noCharts   bool

	rootCmd = &cobra.Command{
		Use:   "spendtrend",
		Short: "Correct FTE discontinuities in a spending panel and test per-FTE trends",
		Long: `spendtrend loads an entity-by-year spending panel, detects and repairs
the structural break in the FTE denominator, recomputes per-FTE and
inflation-adjusted metrics and fits a significance-tested trend to each.`,
		SilenceUsage: true,
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [panel file]",
		Short: "Run the full analysis and write CSV, XLSX, chart and text outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze, // cmd_analyze.go
	}

	diagnoseCmd = &cobra.Command{
		Use:   "diagnose [panel file]",
		Short: "Report year-over-year FTE anomalies without correcting anything",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDiagnose, // cmd_analyze.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve [panel file]",
		Short: "Analyze a panel and serve the results as a JSON API",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe, // cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s %s\n", config.AppName, config.AppVersion)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	analyzeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from configuration)")
	analyzeCmd.Flags().BoolVar(&noCharts, "no-charts", false, "skip PNG chart rendering")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run output as JSON")
	diagnoseCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the diagnosis as JSON")

	rootCmd.AddCommand(analyzeCmd, diagnoseCmd, serveCmd, versionCmd)
}

// loadConfig reads the configuration and applies command line overrides.
// A positional panel file replaces paths.input.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Paths.Input = args[0]
	}
	if outputDir != "" {
		cfg.Paths.OutputDir = outputDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}
