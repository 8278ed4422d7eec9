package intake

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/clinvar-query/internal/domain"
)

// OutputKind selects the processed or misaligned output directory
type OutputKind string

const (
	KindProcessed  OutputKind = "processed"
	KindMisaligned OutputKind = "misaligned"
)

// OutputFile describes one saved output
type OutputFile struct {
	Name    string     `json:"name"`
	Kind    OutputKind `json:"kind"`
	Size    int64      `json:"size"`
	ModTime time.Time  `json:"modified"`
}

// ParseOutputKind validates a kind supplied by a caller
func ParseOutputKind(s string) (OutputKind, error) {
	switch OutputKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindProcessed:
		return KindProcessed, nil
	case KindMisaligned:
		return KindMisaligned, nil
	}
	return "", domain.NewValidationError("kind", "must be processed or misaligned", s)
}

func (p *Processor) dirFor(kind OutputKind) (string, error) {
	switch kind {
	case KindProcessed:
		return p.processedDir, nil
	case KindMisaligned:
		return p.errorDir, nil
	}
	return "", domain.NewValidationError("kind", "must be processed or misaligned", string(kind))
}

// ListOutputs returns the saved processed and misaligned files, newest first.
// A missing output directory contributes nothing.
func (p *Processor) ListOutputs() ([]OutputFile, error) {
	files := []OutputFile{}
	for _, kind := range []OutputKind{KindProcessed, KindMisaligned} {
		dir, _ := p.dirFor(kind)
		entries, err := afero.ReadDir(p.fs, dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, info := range entries {
			if info.IsDir() || !strings.HasSuffix(info.Name(), ".txt") {
				continue
			}
			files = append(files, OutputFile{
				Name:    info.Name(),
				Kind:    kind,
				Size:    info.Size(),
				ModTime: info.ModTime().UTC(),
			})
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// ReadOutput returns the contents of a saved output. name must be a bare file
// name inside the kind's directory; anything that could leave it is rejected.
func (p *Processor) ReadOutput(kind OutputKind, name string) (string, error) {
	dir, err := p.dirFor(kind)
	if err != nil {
		return "", err
	}
	if !validOutputName(name) {
		return "", domain.NewValidationError("name", "must be a file name without path components", name)
	}

	data, err := afero.ReadFile(p.fs, filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read %s output %s: %w", kind, name, err)
	}
	return string(data), nil
}

func validOutputName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
