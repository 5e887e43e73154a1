// Package files locates panel input files and checks that input and output
// locations are usable before any work starts.
//
// Discovery: FindPanelFiles lists the CSV and Excel files of a directory
// and ResolveInput turns a file or directory argument into one panel file,
// picking the most recently modified file of a directory.
//
// Validation: ValidateFile and ValidateOutputDirectory fail early with
// storage errors instead of surfacing them halfway through a run.
package files
