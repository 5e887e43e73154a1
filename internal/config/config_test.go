package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spendtrend/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spendtrend.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad tests defaults, file overlay and env precedence
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, "output", cfg.Paths.OutputDir)

				a := cfg.Analysis
				assert.Equal(t, 2018, a.StartYear)
				assert.Equal(t, 2023, a.EndYear)
				assert.Equal(t, 2020, a.BreakYear)
				assert.Equal(t, 2.0, a.AnomalyThreshold)
				assert.Equal(t, 1.0, a.DiagnosisSwing)
				assert.Equal(t, 2018, a.BaseYear)
				assert.Equal(t, 1.16, a.Deflators[2022])
				assert.Len(t, a.Deflators, 6)
				assert.Equal(t, 0.05, a.Significance.Weak)
				assert.Equal(t, DefaultMetrics(), a.Metrics)
			},
		},
		{
			name: "env overrides",
			env: map[string]string{
				"SPENDTREND_ANALYSIS_BREAK_YEAR":        "2021",
				"SPENDTREND_ANALYSIS_ANOMALY_THRESHOLD": "3.5",
				"SPENDTREND_ANALYSIS_DEFLATORS":         "2018:1,2019:1.5",
				"SPENDTREND_SERVER_RATE_LIMIT_RPS":      "5",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2021, cfg.Analysis.BreakYear)
				assert.Equal(t, 3.5, cfg.Analysis.AnomalyThreshold)
				assert.Equal(t, map[int]float64{2018: 1, 2019: 1.5}, cfg.Analysis.Deflators)
				assert.Equal(t, 5.0, cfg.Server.RateLimit.RPS)
			},
		},
		{
			name: "file overlays defaults",
			file: `
server:
  port: 7070
analysis:
  break_year: 2019
  anomaly_threshold: 3
  metrics:
    - column: admin_per_fte
      aggregator: mean
      by_category: true
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 2019, cfg.Analysis.BreakYear)
				assert.Equal(t, 3.0, cfg.Analysis.AnomalyThreshold)
				assert.Equal(t, 2023, cfg.Analysis.EndYear)
				assert.Len(t, cfg.Analysis.Deflators, 6)
				require.Len(t, cfg.Analysis.Metrics, 1)
				assert.Equal(t, "admin_per_fte", cfg.Analysis.Metrics[0].Column)
				assert.True(t, cfg.Analysis.Metrics[0].ByCategory)
			},
		},
		{
			name: "env takes precedence over file",
			env:  map[string]string{"SPENDTREND_SERVER_PORT": "9090"},
			file: "server:\n  port: 7070\nlogging:\n  level: debug\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "threshold must exceed one",
			env:     map[string]string{"SPENDTREND_ANALYSIS_ANOMALY_THRESHOLD": "1.0"},
			wantErr: true,
		},
		{
			name:    "base year deflator must be one",
			env:     map[string]string{"SPENDTREND_ANALYSIS_DEFLATORS": "2018:1.1,2019:1.2"},
			wantErr: true,
		},
		{
			name:    "non-positive deflator",
			env:     map[string]string{"SPENDTREND_ANALYSIS_DEFLATORS": "2018:1,2019:0"},
			wantErr: true,
		},
		{
			name:    "break year without prior year",
			env:     map[string]string{"SPENDTREND_ANALYSIS_BREAK_YEAR": "2018"},
			wantErr: true,
		},
		{
			name:    "unordered cut points",
			env:     map[string]string{"SPENDTREND_ANALYSIS_SIGNIFICANCE_STRONG": "0.5"},
			wantErr: true,
		},
		{
			name:    "unknown aggregator",
			file:    "analysis:\n  metrics:\n    - column: admin_pct\n      aggregator: mode\n",
			wantErr: true,
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"SPENDTREND_LOGGING_LEVEL": "verbose"},
			wantErr: true,
		},
		{
			name:    "unparsable env value",
			env:     map[string]string{"SPENDTREND_ANALYSIS_BREAK_YEAR": "twenty"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestAnalysisConfig_MetricSpecs(t *testing.T) {
	overall, byCategory, err := DefaultAnalysis().MetricSpecs()
	require.NoError(t, err)
	assert.Len(t, overall, len(DefaultMetrics()))
	assert.Len(t, byCategory, 6)

	assert.Equal(t, "admin_pct", overall[0].Column)
	assert.Equal(t, "admin share of total (fraction)", overall[0].Label)
	assert.Equal(t, "mean", overall[0].Aggregator.Name())
	assert.Equal(t, "median", byCategory[3].Aggregator.Name())
	assert.Equal(t, "admin_per_fte_real", byCategory[3].Column)
}

func TestAnalysisConfig_Conversions(t *testing.T) {
	a := DefaultAnalysis()

	cuts := a.CutPoints()
	assert.Equal(t, 0.001, cuts.Strongest)
	assert.Equal(t, 0.01, cuts.Strong)

	table := a.DeflatorTable()
	table[2018] = 9
	assert.Equal(t, 1.0, a.Deflators[2018], "deflator table must be a copy")
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, PanelCSVFile), paths.PanelCSV)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, ChartsDirName), paths.ChartsDir)

	require.NoError(t, paths.EnsureDirectories())
	info, err := os.Stat(paths.ChartsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
