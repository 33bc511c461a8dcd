// Package localfs provides local filesystem walking used by the CLI's
// directory-enqueue command.
package localfs

import (
	"io/fs"
	"path/filepath"
	"time"
)

// FileEntry represents a file or directory found while walking the local
// filesystem.
type FileEntry struct {
	Path      string      // Full path to the file
	Name      string      // Base name of the file
	Size      int64       // Size in bytes (0 for directories)
	IsDir     bool        // True if this is a directory
	ModTime   time.Time   // Last modification time
	Mode      fs.FileMode // File mode/permissions
	IsSymlink bool        // True if this is a symbolic link
}

// WalkFunc is the callback signature for Walk.
// Return filepath.SkipDir to skip a directory, or any other error to stop walking.
type WalkFunc func(entry FileEntry) error

// Walk traverses a directory tree depth-first, calling fn for each file and
// directory found. It respects opts for hidden file/directory filtering.
func Walk(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		name := d.Name()
		if !opts.IncludeHidden && IsHiddenName(name) {
			if d.IsDir() && opts.SkipHiddenDirs {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		return fn(FileEntry{
			Path:      path,
			Name:      name,
			Size:      info.Size(),
			IsDir:     d.IsDir(),
			ModTime:   info.ModTime(),
			Mode:      info.Mode(),
			IsSymlink: info.Mode()&fs.ModeSymlink != 0,
		})
	})
}

// WalkFiles is a convenience wrapper around Walk that only visits regular
// files, skipping directories and symlinks. Used to collect files for a
// directory-enqueue upload.
func WalkFiles(root string, opts WalkOptions, fn WalkFunc) error {
	return Walk(root, opts, func(entry FileEntry) error {
		if entry.IsDir || entry.IsSymlink {
			return nil
		}
		return fn(entry)
	})
}
