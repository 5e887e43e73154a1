package files

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "spendtrend/internal/errors"
)

// ValidateFile checks that path is a readable, non-empty regular file
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("file %s is not accessible", path), err)
	}
	if info.IsDir() {
		return apperrors.NewStorageError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}
	if info.Size() == 0 {
		return apperrors.NewSchemaError(fmt.Sprintf("file %s is empty", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("file %s is not readable", path), err)
	}
	return f.Close()
}

// ValidateOutputDirectory creates dir if needed and checks that files can be
// written to it
func ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("cannot create output directory %s", dir), err)
	}

	probe, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("cannot clean up %s", filepath.Base(name)), err)
	}
	return nil
}
