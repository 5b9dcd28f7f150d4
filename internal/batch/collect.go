package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/linuxmatters/levelset/internal/audio"
)

// Collection is the result of discovering input files
type Collection struct {
	Files   []string // Supported audio files, de-duplicated and sorted
	Skipped []string // Files given explicitly with an unsupported extension
	Missing []string // Paths that do not exist
}

// Collect expands paths into supported audio files. Files are kept when their
// extension is in exts; directories contribute their supported files, walked
// in full when recursive is set.
func Collect(paths []string, recursive bool, exts []string) (Collection, error) {
	var c Collection
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			c.Files = append(c.Files, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				c.Missing = append(c.Missing, path)
				continue
			}
			return c, err
		}

		if !info.IsDir() {
			if audio.SupportedInput(path, exts) {
				add(path)
			} else {
				c.Skipped = append(c.Skipped, path)
			}
			continue
		}

		if recursive {
			err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && audio.SupportedInput(p, exts) {
					add(p)
				}
				return nil
			})
			if err != nil {
				return c, err
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return c, err
		}
		for _, e := range entries {
			if !e.IsDir() && audio.SupportedInput(e.Name(), exts) {
				add(filepath.Join(path, e.Name()))
			}
		}
	}

	sort.Strings(c.Files)
	return c, nil
}
