// Package manifest renders declared source tables as a dbt-style
// sources.yml document.
package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"smartkeiba/internal/domain"
)

// SourceFile is the top-level sources.yml document.
type SourceFile struct {
	Version int      `yaml:"version"`
	Sources []Source `yaml:"sources"`
}

// Source is one database+schema group of tables.
type Source struct {
	Name     string        `yaml:"name"`
	Database string        `yaml:"database,omitempty"`
	Schema   string        `yaml:"schema"`
	Tables   []SourceTable `yaml:"tables"`
}

// SourceTable is a logical table; Identifier is set when the physical name
// differs.
type SourceTable struct {
	Name       string `yaml:"name"`
	Identifier string `yaml:"identifier,omitempty"`
}

// Compile-time check.
var _ domain.Declarer = (*Writer)(nil)

// Writer collects declarations and writes them out on Flush.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	path    string
	sources []Source
	index   map[string]int
}

// NewWriter writes the manifest to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w, index: make(map[string]int)}
}

// NewFileWriter writes the manifest to path, replacing it atomically.
func NewFileWriter(path string) *Writer {
	return &Writer{path: path, index: make(map[string]int)}
}

// Declare records spec under the source named after set. A set whose
// tables live in more than one schema gets one source per schema.
func (w *Writer) Declare(_ context.Context, set string, spec domain.SourceTableSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := set + "\x00" + spec.Database + "\x00" + spec.Schema
	i, ok := w.index[key]
	if !ok {
		name := set
		for _, s := range w.sources {
			if s.Name == name {
				name = set + "_" + spec.Schema
				break
			}
		}
		w.sources = append(w.sources, Source{Name: name, Database: spec.Database, Schema: spec.Schema})
		i = len(w.sources) - 1
		w.index[key] = i
	}

	t := SourceTable{Name: spec.LogicalName}
	if spec.PhysicalName != "" && spec.PhysicalName != spec.LogicalName {
		t.Identifier = spec.PhysicalName
	}
	w.sources[i].Tables = append(w.sources[i].Tables, t)
	return nil
}

// Document returns the collected manifest.
func (w *Writer) Document() SourceFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := SourceFile{Version: 2, Sources: make([]Source, len(w.sources))}
	for i, s := range w.sources {
		s.Tables = append([]SourceTable(nil), s.Tables...)
		out.Sources[i] = s
	}
	return out
}

// Flush encodes the manifest and writes it to the destination.
func (w *Writer) Flush(_ context.Context) error {
	data, err := Encode(w.Document())
	if err != nil {
		return err
	}
	if w.path == "" {
		_, err := w.out.Write(data)
		return err
	}
	return writeFileAtomic(w.path, data)
}

// Encode renders doc as YAML with two-space indentation.
func Encode(doc SourceFile) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a sources.yml document.
func Decode(data []byte) (SourceFile, error) {
	var doc SourceFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SourceFile{}, fmt.Errorf("decode manifest: %w", err)
	}
	return doc, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sources-*.yml")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
