// Package mapstore reads and writes the entity data of level files.
//
// Two formats are supported, selected by file extension:
//
//   - ".ent": the entity-lump text of compiled levels, a sequence of
//     { "key" "value" ... } blocks.
//   - ".yaml" / ".yml": a YAML document with a category and an ordered list
//     of keyvalue mappings.
package mapstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/level"
)

var (
	// ErrUnsupportedFormat is returned for files whose extension has no codec.
	ErrUnsupportedFormat = errors.New("mapstore: unsupported format")

	// ErrSyntax is returned for malformed input.
	ErrSyntax = errors.New("mapstore: syntax error")

	// ErrUnencodable is returned when entity data cannot be represented in
	// the target format.
	ErrUnencodable = errors.New("mapstore: unencodable entity data")
)

// Format identifies a codec.
type Format string

const (
	FormatEnt  Format = "ent"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format for path based on its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ent":
		return FormatEnt, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// Decode reads the entity records of a level in format f. Entity-lump
// text is always a compiled level; YAML carries its own category.
func Decode(r io.Reader, f Format) (level.Category, []entity.Record, error) {
	switch f {
	case FormatEnt:
		records, err := decodeEnt(r)
		return level.CategoryCompiled, records, err
	case FormatYAML:
		return decodeYAML(r)
	}
	return 0, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// Encode writes the current entity records of m in format f.
func Encode(w io.Writer, f Format, m *level.Map) error {
	switch f {
	case FormatEnt:
		return encodeEnt(w, m.Records())
	case FormatYAML:
		return encodeYAML(w, m.Category, m.Records())
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// Load reads the level at path. The entity list is built lazily by
// [level.Map.Entities], so structural problems surface there.
func Load(path string) (*level.Map, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapstore: open %q: %w", path, err)
	}
	defer file.Close()

	cat, records, err := Decode(file, f)
	if err != nil {
		return nil, fmt.Errorf("mapstore: read %q: %w", path, err)
	}
	return level.New(path, cat, records), nil
}

// newFilePerm is the mode of files Save creates.
const newFilePerm fs.FileMode = 0o644

// Save writes m to path, or to m.Filename when path is empty. The file is
// replaced atomically: data goes to a temporary file in the same directory
// which is then renamed over the target. An existing target keeps its
// permission bits; a new file gets 0644.
func Save(m *level.Map, path string) (err error) {
	if path == "" {
		path = m.Filename
	}
	f, err := FormatOf(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("mapstore: save %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	perm := newFilePerm
	if st, serr := os.Stat(path); serr == nil {
		perm = st.Mode().Perm()
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("mapstore: save %q: %w", path, err)
	}
	if err = Encode(tmp, f, m); err != nil {
		return fmt.Errorf("mapstore: save %q: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("mapstore: save %q: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("mapstore: save %q: %w", path, err)
	}
	return nil
}
