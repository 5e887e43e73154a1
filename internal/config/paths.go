package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains every output location of an analysis run
type Paths struct {
	OutputDir string
	ChartsDir string

	PanelCSV    string
	TrendsCSV   string
	Workbook    string
	SummaryText string
}

// ResolvePaths derives the output file locations from the configured
// output directory. A relative directory is resolved against the working
// directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	dir := c.Paths.OutputDir
	if dir == "" {
		dir = DefaultOutputDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %s: %w", dir, err)
	}

	return &Paths{
		OutputDir:   abs,
		ChartsDir:   filepath.Join(abs, ChartsDirName),
		PanelCSV:    filepath.Join(abs, PanelCSVFile),
		TrendsCSV:   filepath.Join(abs, TrendsCSVFile),
		Workbook:    filepath.Join(abs, WorkbookFile),
		SummaryText: filepath.Join(abs, SummaryTextFile),
	}, nil
}

// EnsureDirectories creates the output and chart directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.ChartsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
