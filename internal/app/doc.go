// Package app wires configuration, logging, observability, the analysis
// pipeline, the exporter and the results API into one Application.
//
// # Initialization Flow
//
//	1. Load and validate configuration (YAML overlaid by SPENDTREND_* env)
//	2. Initialize the process logger and OpenTelemetry providers
//	3. Build the pipeline stages from the analysis configuration
//	4. Resolve output paths
//
// # Usage
//
// One-shot analysis from the command line:
//
//	application, err := app.NewApplication(cfg)
//	report, err := application.Analyze(ctx, cfg.Paths.Input)
//
// Serving results until interrupted:
//
//	err := application.Serve(ctx, cfg.Paths.Input)
//
// # Error Handling
//
// All errors are returned to the caller; the package never exits the
// process.
package app
