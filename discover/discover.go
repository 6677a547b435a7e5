// Package discover finds documents to proofread and writes the results.
//
// Inputs are *.txt files under a base directory. The output of "scan.txt" is
// "scan_proofread.txt" next to it; files whose stem contains the suffix are
// outputs and never inputs, and inputs whose output already exists are
// skipped so an interrupted run can be restarted.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExt is the extension of input documents.
const DefaultExt = ".txt"

// Layout names input and output files.
type Layout struct {
	// Suffix is appended to the input stem, e.g. "_proofread".
	Suffix string

	// Ext is the input extension including the dot. Empty means DefaultExt.
	Ext string
}

func (l Layout) ext() string {
	if l.Ext == "" {
		return DefaultExt
	}
	return l.Ext
}

// OutputPath returns where the result for input is written.
func (l Layout) OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + l.Suffix + ext
}

// IsOutput reports whether path names a result file.
func (l Layout) IsOutput(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return l.Suffix != "" && strings.Contains(stem, l.Suffix)
}

// IsInput reports whether path has the input extension and is not an output.
func (l Layout) IsInput(path string) bool {
	return strings.EqualFold(filepath.Ext(path), l.ext()) && !l.IsOutput(path)
}

// Document is an input file and its output path.
type Document struct {
	Path   string
	Output string
}

// Processed reports whether the output already exists.
func (d Document) Processed() bool {
	_, err := os.Stat(d.Output)
	return err == nil
}

// Walk returns the unprocessed inputs under base in lexical order.
func Walk(base string, layout Layout, logger *slog.Logger) ([]Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var docs []Document

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base {
				return err
			}
			logger.Warn("skipping unreadable path", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if d.IsDir() || !layout.IsInput(path) {
			return nil
		}
		doc := Document{Path: path, Output: layout.OutputPath(path)}
		if doc.Processed() {
			logger.Info("already processed", slog.String("path", path), slog.String("output", doc.Output))
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", base, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// WriteAtomic writes data to path through a temporary file in the same
// directory, so readers never observe a partial result.
func WriteAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// ErrNotDirectory is returned when base is not a directory.
var ErrNotDirectory = errors.New("not a directory")

func checkDir(base string) error {
	info, err := os.Stat(base)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", base, ErrNotDirectory)
	}
	return nil
}
