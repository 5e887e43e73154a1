// Package shared groups helpers used by more than one package.
//
// The testutil subpackage captures slog output so tests can assert on the
// warnings and attributes a component logs:
//
//	logger, logs := testutil.NewTestLogger(t)
//	p, _ := pipeline.New(cfg, logger, nil)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "severe FTE anomaly")
package shared
