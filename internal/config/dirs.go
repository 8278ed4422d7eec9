package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/clinvar-query/internal/domain"
)

// EnsureDataDirs creates the intake output directories and, for the sqlite
// driver, the directory holding the database file.
func EnsureDataDirs(fs afero.Fs, cfg *domain.Config) error {
	dirs := []string{cfg.Pipeline.ProcessedDir, cfg.Pipeline.ErrorDir}
	if strings.EqualFold(cfg.Database.Driver, "sqlite") && cfg.Database.SQLitePath != "" && cfg.Database.SQLitePath != ":memory:" {
		dirs = append(dirs, filepath.Dir(cfg.Database.SQLitePath))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
