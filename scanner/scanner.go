// Package scanner lists the program files below a directory.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions map[string]bool
}

// New returns a scanner for files under rootDir with one of extensions.
// Without extensions every file matches.
func New(rootDir string, extensions ...string) *Scanner {
	s := &Scanner{rootDir: rootDir}
	if len(extensions) > 0 {
		s.extensions = make(map[string]bool, len(extensions))
		for _, ext := range extensions {
			s.extensions[ext] = true
		}
	}
	return s
}

// Scan walks the tree and returns the matching files sorted by path.
// Hidden directories such as .git or the verdict cache are skipped.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.isTargetFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func (s *Scanner) isTargetFile(path string) bool {
	if s.extensions == nil {
		return true
	}
	return s.extensions[filepath.Ext(path)]
}
