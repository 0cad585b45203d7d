package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Project variable names shared with the release configuration.
const (
	VarSourceSchema    = "source_schema"
	VarSourceSchemaStg = "source_schema_stg"
)

// projectFiles are searched in order; the first one found wins.
var projectFiles = []string{"workflow_settings.yaml", "workflow_settings.yml", "dataform.json"}

// ProjectConfig is the transformation project's settings file:
// workflow_settings.yaml (defaultProject/defaultDataset/vars) or the older
// dataform.json (defaultDatabase/defaultSchema/vars).
type ProjectConfig struct {
	Path            string
	DefaultDatabase string
	DefaultSchema   string // the default-schema indicator
	Vars            map[string]string
}

// Var returns the named project variable, or "" when unset.
func (p *ProjectConfig) Var(name string) string {
	if p == nil || p.Vars == nil {
		return ""
	}
	return p.Vars[name]
}

// LoadProject reads the project settings file from dir. Environment
// variables KOLBI_SOURCE_SCHEMA, KOLBI_SOURCE_SCHEMA_STG and
// KOLBI_DEFAULT_SCHEMA override the file, which is how the release
// configuration injects per-environment values. A missing file is not an
// error when overrides supply what is needed; an empty ProjectConfig is
// returned and validation is left to the resolver.
func LoadProject(dir string) (*ProjectConfig, error) {
	v := viper.New()
	for _, key := range []string{VarSourceSchema, VarSourceSchemaStg, "default_schema"} {
		if err := v.BindEnv("override."+key, "KOLBI_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	p := &ProjectConfig{Vars: map[string]string{}}

	path, err := findProjectFile(dir)
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read project config %s: %w", path, err)
		}
		p.Path = path
		p.DefaultDatabase = firstNonEmpty(v.GetString("defaultProject"), v.GetString("defaultDatabase"))
		p.DefaultSchema = firstNonEmpty(v.GetString("defaultDataset"), v.GetString("defaultSchema"))
		for k, val := range v.GetStringMapString("vars") {
			p.Vars[k] = val
		}
	}

	if s := v.GetString("override." + VarSourceSchema); s != "" {
		p.Vars[VarSourceSchema] = s
	}
	if s := v.GetString("override." + VarSourceSchemaStg); s != "" {
		p.Vars[VarSourceSchemaStg] = s
	}
	if s := v.GetString("override.default_schema"); s != "" {
		p.DefaultSchema = s
	}
	return p, nil
}

func findProjectFile(dir string) (string, error) {
	for _, name := range projectFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
