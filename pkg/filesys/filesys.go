// Package filesys provides the directory and file operations ignitedb
// needs around its data directory: creating it, copying it for backups,
// removing it, checking whether it exists, and writing small state files
// atomically.
package filesys

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

var (
	ErrIsNotDir = errors.New("path isn't a directory")
)

// CreateDir creates a directory at the specified path with the given permissions.
//
// If the directory already exists:
//   - If 'force' is true, it proceeds without error.
//   - If 'force' is false, it returns an error.
//
// It also returns an error if the existing path is a file (not a directory).
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	// Get file information for the given path.
	stat, err := os.Stat(dirPath)
	// If 'force' is false and the path exists, report that it already exists.
	if !force && err == nil {
		return os.ErrExist
	}
	// If 'force' is false and the stat failed for another reason, return that error.
	if !force && !os.IsNotExist(err) {
		return err
	}

	// If the path exists and it's not a directory, return an error.
	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	// Create all necessary parent directories if they don't exist, with the specified permissions.
	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	// Change the permissions of the newly created directory to 0755 (rwxr-xr-x).
	return os.Chmod(dirPath, 0755)
}

// DeleteDir deletes a directory and all its contents recursively.
// It returns any error encountered during the removal.
func DeleteDir(path string) error {
	return os.RemoveAll(path)
}

// CopyDir copies the entire contents of a source directory to a destination directory.
// The destination directory takes the source directory's mode; only regular
// files are copied, and they are created with default permissions rather
// than the source files' modes. It returns an error if the source is not a directory or if any other I/O operation fails.
func CopyDir(src, dest string) error {
	// Get file information for the source path.
	srcStat, err := os.Stat(src)
	if err != nil {
		return err
	}
	// If the source is not a directory, return an error.
	if !srcStat.IsDir() {
		return ErrIsNotDir
	}

	// Create the destination directory with the same permissions as the source directory.
	if err := os.MkdirAll(dest, srcStat.Mode()); err != nil {
		return err
	}

	// Walk through the source directory recursively.
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		// If an error occurred during walking, return it.
		if err != nil {
			return err
		}

		// If the current item is not a regular file (e.g., a directory, symlink), skip it.
		if !info.Mode().IsRegular() {
			return nil
		}

		// Construct the destination path for the current file.
		// `path[len(src)+1:]` gets the relative path from the source directory.
		destPath := filepath.Join(dest, path[len(src)+1:])
		// Create any necessary parent directories for the destination file with default permissions.
		if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
			return err
		}

		// Open the source file for reading.
		srcFile, err := os.Open(path)
		if err != nil {
			return err
		}
		defer srcFile.Close() // Ensure the source file is closed.

		// Create the destination file for writing.
		destFile, err := os.Create(destPath)
		if err != nil {
			return err
		}
		defer destFile.Close() // Ensure the destination file is closed.

		// Copy the contents from the source file to the destination file.
		if _, err := io.Copy(destFile, srcFile); err != nil {
			return err
		}

		return nil
	})
	// If an error occurred during the walk, return it.
	if err != nil {
		return err
	}

	return nil
}

// WriteFileAtomic writes contents to filePath such that a reader never
// observes a partially-written file: the data is written to a temporary
// file in the same directory and then renamed into place. Use this for
// state files that must never be found truncated or half-written after a
// crash, such as a backup manifest.
func WriteFileAtomic(filePath string, contents []byte) error {
	return atomic.WriteFile(filePath, bytes.NewReader(contents))
}

// Exists checks if a file or directory at the given `file` path exists.
// It returns true if the file/directory exists, false if it does not,
// and an error if there's any other issue checking its status.
func Exists(file string) (bool, error) {
	_, err := os.Stat(file)
	if err == nil {
		return true, nil // Path exists.
	}
	// If the error indicates that the file does not exist, return false.
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

