// Package media describes the source files scribe accepts.
package media

import (
	"path/filepath"
	"strings"
)

// Extensions lists the accepted source extensions, lower-cased.
var Extensions = []string{".mp4", ".mp3", ".wav"}

// File is a candidate source discovered by a watcher.
type File struct {
	// Path is the absolute path of the source.
	Path string
	// Name is the base name including extension.
	Name string
	// Ext is the lower-cased extension including the dot.
	Ext string
	// Rel is Path relative to the watched root; equal to Name for files directly inside it.
	Rel string
}

// Supported reports whether name carries an accepted extension. Matching is case-insensitive.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// NewFile builds a File for path discovered under root. ok is false when the
// extension is not accepted or path does not lie under root.
func NewFile(root, path string) (File, bool) {
	name := filepath.Base(path)
	if !Supported(name) {
		return File{}, false
	}
	rel := name
	if root != "" {
		r, err := filepath.Rel(root, path)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return File{}, false
		}
		rel = r
	}
	return File{
		Path: path,
		Name: name,
		Ext:  strings.ToLower(filepath.Ext(name)),
		Rel:  rel,
	}, true
}

// Stem returns the name minus its final extension.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

// RelDir returns the directory part of Rel, or "" for files at the root.
func (f File) RelDir() string {
	dir := filepath.Dir(f.Rel)
	if dir == "." {
		return ""
	}
	return dir
}

// OutputPath returns <dir>/<rel dir>/<stem><ext>.
func (f File) OutputPath(dir, ext string) string {
	return filepath.Join(dir, f.RelDir(), f.Stem()+ext)
}
