package config

// AppVersion is overridden at build time with -ldflags "-X".
var AppVersion = "1.0.0"

// Application constants
const (
	AppName = "spendtrend"

	// Output file names, relative to the output directory
	PanelCSVFile     = "panel_corrected.csv"
	TrendsCSVFile    = "trend_summary.csv"
	WorkbookFile     = "spending_analysis.xlsx"
	SummaryTextFile  = "analysis_summary.txt"
	ChartsDirName    = "charts"
	DefaultOutputDir = "output"
)
