package declarative

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadDirectory reads sources/*.yaml and exports/*.yaml from dir.
func LoadDirectory(dir string) (*Declarations, error) {
	return LoadDirectoryWithOptions(dir, LoadOptions{})
}

// LoadDirectoryWithOptions reads all YAML files from the given directory using
// caller-provided loading options. Missing sub-directories are OK.
func LoadDirectoryWithOptions(dir string, opts LoadOptions) (*Declarations, error) {
	decls := &Declarations{}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory: %s is not a directory", dir)
	}

	if err := loadSourceSets(dir, decls, opts); err != nil {
		return nil, err
	}
	if err := loadExportJobs(dir, decls, opts); err != nil {
		return nil, err
	}
	return decls, nil
}

// loadYAMLFile reads and unmarshals a YAML file into the given target.
// Returns (false, nil) if file doesn't exist (optional files).
// Returns (false, err) on read/parse errors.
// Returns (true, nil) on success.
func loadYAMLFile(path string, target interface{}, opts LoadOptions) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := decodeYAML(data, target, opts); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func decodeYAML(data []byte, target interface{}, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		return yaml.Unmarshal(data, target)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(target)
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path string, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}

// dirExists returns true if path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// yamlFiles lists *.yaml and *.yml files of dir in lexical order.
func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// loadSourceSets reads every document in sources/. Each file holds one
// SourceSet; its metadata.name must be unique across files.
func loadSourceSets(root string, decls *Declarations, opts LoadOptions) error {
	srcDir := filepath.Join(root, "sources")
	if !dirExists(srcDir) {
		return nil
	}
	files, err := yamlFiles(srcDir)
	if err != nil {
		return err
	}

	seen := make(map[string]string, len(files))
	for _, path := range files {
		var doc SourceSetDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameSourceSet); err != nil {
			return err
		}
		if prev, dup := seen[doc.Metadata.Name]; dup {
			return fmt.Errorf("%s: source set %q already declared in %s", path, doc.Metadata.Name, prev)
		}
		seen[doc.Metadata.Name] = path
		decls.SourceSets = append(decls.SourceSets, SourceSetResource{
			Name:     doc.Metadata.Name,
			FilePath: path,
			Spec:     doc.Spec,
		})
	}
	return nil
}

// loadExportJobs reads every ExportJobList document in exports/.
func loadExportJobs(root string, decls *Declarations, opts LoadOptions) error {
	expDir := filepath.Join(root, "exports")
	if !dirExists(expDir) {
		return nil
	}
	files, err := yamlFiles(expDir)
	if err != nil {
		return err
	}

	for _, path := range files {
		var doc ExportJobListDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, KindNameExportJobList); err != nil {
			return err
		}
		for _, j := range doc.Jobs {
			decls.ExportJobs = append(decls.ExportJobs, ExportJobResource{FilePath: path, Spec: j})
		}
	}
	return nil
}

// ParseSourceSet decodes a single SourceSet document from memory.
func ParseSourceSet(data []byte, opts LoadOptions) (SourceSetResource, error) {
	var doc SourceSetDoc
	if err := decodeYAML(data, &doc, opts); err != nil {
		return SourceSetResource{}, fmt.Errorf("parse source set: %w", err)
	}
	if err := validateDocument("<inline>", doc.APIVersion, doc.Kind, KindNameSourceSet); err != nil {
		return SourceSetResource{}, err
	}
	return SourceSetResource{Name: doc.Metadata.Name, Spec: doc.Spec}, nil
}
