package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	crosspost "github.com/goliatone/go-crosspost"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	sourceLabel = "go-crosspost"
	rootDir     = "data/sql/migrations"
)

// DialectFS is the migration tree for one SQL dialect.
type DialectFS struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []DialectFS
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

func WithFilesystems(filesystems ...DialectFS) Option {
	return func(r *Registration) {
		kept := make([]DialectFS, 0, len(filesystems))
		for _, entry := range filesystems {
			entry.Dialect = strings.ToLower(strings.TrimSpace(entry.Dialect))
			if entry.Dialect != "" && entry.FS != nil {
				kept = append(kept, entry)
			}
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems splits the embedded tree (or the given override) into the
// postgres root and its sqlite subdirectory. Both dialects must ship the
// same up/down pairs.
func Filesystems(sources ...fs.FS) ([]DialectFS, error) {
	root := crosspost.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	out := []DialectFS{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, "sqlite"), FS: sqliteFS},
	}
	var reference []string
	for _, entry := range out {
		versions, err := Versions(entry.FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s %q: %w", entry.Dialect, entry.Path, err)
		}
		if reference == nil {
			reference = versions
			continue
		}
		if !slices.Equal(reference, versions) {
			return nil, fmt.Errorf("migrations: %s versions %v differ from %s versions %v",
				entry.Dialect, versions, out[0].Dialect, reference)
		}
	}
	return out, nil
}

// Versions lists the migration names in fsys, requiring a down file for
// every up file.
func Versions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("missing down migration for %s", name)
		}
		versions = append(versions, name)
	}
	slices.Sort(versions)
	return versions, nil
}

// Register hands every filesystem whose dialect is a validation target to
// registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       sourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	for _, entry := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, entry.Dialect) {
			continue
		}
		if err := registerFn(ctx, entry.Dialect, reg.SourceLabel, entry.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", entry.Dialect, entry.Path, err)
		}
	}
	return reg, nil
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(root, rootDir); err == nil {
		sub, err := fs.Sub(root, rootDir)
		if err != nil {
			return nil, "", err
		}
		return sub, rootDir, nil
	}
	if matches, _ := fs.Glob(root, "*.up.sql"); len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", rootDir)
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}

func joinPath(base string, child string) string {
	if base == "." {
		return child
	}
	return base + "/" + child
}
