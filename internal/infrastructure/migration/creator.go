package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
	// versionWidth matches golang-migrate's -seq -digits 6 layout
	versionWidth = 6
)

var fileTemplate = template.Must(template.New("migration").Parse(`-- {{.Name}}{{if .Down}} (rollback){{end}}
-- Created: {{.Created}}

`))

// Entry is one migration version found in a source
type Entry struct {
	Version uint
	Name    string
	HasUp   bool
	HasDown bool
}

// Base returns the file name shared by the up and down halves
func (e Entry) Base() string {
	return fmt.Sprintf("%0*d_%s", versionWidth, e.Version, e.Name)
}

// Complete reports whether both halves exist
func (e Entry) Complete() bool {
	return e.HasUp && e.HasDown
}

// ListMigrations returns the migrations in files ordered by version.
// Names that do not follow {version}_{name}.{up|down}.sql are skipped.
func ListMigrations(files fs.FS) ([]Entry, error) {
	dirEntries, err := fs.ReadDir(files, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[uint]*Entry)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		version, name, up, ok := parseFileName(de.Name())
		if !ok {
			continue
		}
		e, exists := byVersion[version]
		if !exists {
			e = &Entry{Version: version, Name: name}
			byVersion[version] = e
		}
		if up {
			e.HasUp = true
		} else {
			e.HasDown = true
		}
	}

	entries := make([]Entry, 0, len(byVersion))
	for _, e := range byVersion {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}

func parseFileName(file string) (version uint, name string, up bool, ok bool) {
	var base string
	switch {
	case strings.HasSuffix(file, upSuffix):
		base, up = strings.TrimSuffix(file, upSuffix), true
	case strings.HasSuffix(file, downSuffix):
		base = strings.TrimSuffix(file, downSuffix)
	default:
		return 0, "", false, false
	}

	rawVersion, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", false, false
	}
	v, err := strconv.ParseUint(rawVersion, 10, 64)
	if err != nil {
		return 0, "", false, false
	}
	return uint(v), name, up, true
}

// CreateMigration writes an empty up/down pair numbered after the highest
// existing version in dir
func CreateMigration(dir, name string, now time.Time) (*Entry, error) {
	clean := sanitizeName(name)
	if clean == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	next := &Entry{Version: 1, Name: clean, HasUp: true, HasDown: true}
	if n := len(existing); n > 0 {
		next.Version = existing[n-1].Version + 1
	}

	upPath := filepath.Join(dir, next.Base()+upSuffix)
	downPath := filepath.Join(dir, next.Base()+downSuffix)
	created := now.UTC().Format(time.RFC3339)

	if err := writeTemplate(upPath, clean, created, false); err != nil {
		return nil, err
	}
	if err := writeTemplate(downPath, clean, created, true); err != nil {
		_ = os.Remove(upPath)
		return nil, err
	}
	return next, nil
}

func writeTemplate(path, name, created string, down bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	data := struct {
		Name    string
		Created string
		Down    bool
	}{name, created, down}
	if err := fileTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases and collapses separators to single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}
