package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "spendtrend/internal/errors"
)

// PanelExtensions are the file extensions a panel can be loaded from
var PanelExtensions = []string{".csv", ".xlsx", ".xlsm"}

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// IsPanelFile reports whether name has a loadable extension
func IsPanelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range PanelExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FindPanelFiles lists the panel files directly inside dir, oldest first.
// Hidden files and Excel lock files (~$name.xlsx) are skipped.
func FindPanelFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read directory %s", dir), err)
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") || !IsPanelFile(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// Latest returns the most recently modified file
func Latest(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}
	latest := files[0]
	for _, f := range files[1:] {
		if !f.ModTime.Before(latest.ModTime) {
			latest = f
		}
	}
	return latest, true
}

// ResolveInput returns path itself when it is a file, or the newest panel
// file inside it when it is a directory
func ResolveInput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("input %s is not accessible", path), err)
	}
	if !info.IsDir() {
		return path, ValidateFile(path)
	}

	found, err := FindPanelFiles(path)
	if err != nil {
		return "", err
	}
	latest, ok := Latest(found)
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("panel file (%s) in %s", strings.Join(PanelExtensions, ", "), path))
	}
	return latest.Path, ValidateFile(latest.Path)
}
