// Package config loads and validates the spendtrend configuration.
//
// Values are resolved in the following order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML configuration file
//  3. Defaults declared in struct tags (lowest priority)
//
// Environment variables follow the pattern SPENDTREND_<SECTION>_<FIELD>:
//
//	SPENDTREND_ANALYSIS_BREAK_YEAR=2020
//	SPENDTREND_ANALYSIS_ANOMALY_THRESHOLD=2.0
//	SPENDTREND_ANALYSIS_DEFLATORS=2018:1.00,2019:1.02,2020:1.03
//	SPENDTREND_LOGGING_LEVEL=debug
//	SPENDTREND_SERVER_PORT=8080
//
// Trend metrics can only be configured in the YAML file:
//
//	analysis:
//	  metrics:
//	    - column: admin_per_fte_real
//	      aggregator: median
//	      label: Admin per FTE (real)
//	      by_category: true
//
// Any invalid value is a configuration error and aborts startup.
package config
