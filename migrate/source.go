package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFS loads migrations from .sql files in dir of the given filesystem,
// typically an embed.FS compiled into the binary:
//
//	//go:embed migrations/*.sql
//	var migrationsFS embed.FS
//
//	ms, err := migrate.FromFS(migrationsFS, "migrations")
//
// File names follow the  <version>_<name>.sql  convention, e.g.
// 001_create_todos.sql. Non-SQL files are ignored.
func FromFS(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir %q: %w", dir, err)
	}
	var ms []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, name, err := parseFilename(e.Name())
		if err != nil {
			return nil, err
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("migrate: read %q: %w", e.Name(), err)
		}
		ms = append(ms, Migration{Version: version, Name: name, SQL: string(data)})
	}
	slices.SortFunc(ms, func(a, b Migration) int {
		return int(a.Version - b.Version)
	})
	return ms, nil
}

func parseFilename(filename string) (int64, string, error) {
	base := strings.TrimSuffix(filename, ".sql")
	vs, name, found := strings.Cut(base, "_")
	if !found {
		name = ""
	}
	version, err := strconv.ParseInt(vs, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("migrate: %q: cannot parse version: %w", filename, err)
	}
	return version, name, nil
}

// manifest is the YAML migration manifest layout:
//
//	migrations:
//	  - version: 1
//	    name: create_todos
//	    sql: |
//	      CREATE TABLE todos (id TEXT PRIMARY KEY, title TEXT NOT NULL)
type manifest struct {
	Migrations []manifestEntry `yaml:"migrations"`
}

type manifestEntry struct {
	Version int64  `yaml:"version"`
	Name    string `yaml:"name"`
	SQL     string `yaml:"sql"`
}

// FromYAML parses a YAML migration manifest.
func FromYAML(data []byte) ([]Migration, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("migrate: parse manifest: %w", err)
	}
	ms := make([]Migration, 0, len(m.Migrations))
	for _, e := range m.Migrations {
		if e.SQL == "" {
			return nil, fmt.Errorf("migrate: manifest version %d has no sql", e.Version)
		}
		ms = append(ms, Migration(e))
	}
	return ms, nil
}

// FromYAMLFile loads a YAML migration manifest from the given filesystem.
func FromYAMLFile(fsys fs.FS, name string) ([]Migration, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("migrate: read %q: %w", name, err)
	}
	return FromYAML(data)
}
