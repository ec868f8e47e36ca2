package infra

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// MaxValueFileSize caps configuration value files (title, source, debouncing...).
const MaxValueFileSize = 100 * 1024

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct{}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	return &FileSystemManagerImpl{}
}

// IsExecutable checks execute permission with access(2), as the current user.
func (fm *FileSystemManagerImpl) IsExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}

// ReadValue returns the content of path up to the first line ending.
func (fm *FileSystemManagerImpl) ReadValue(path string) (string, error) {
	data, err := readSmallFile(path)
	if err != nil {
		return "", err
	}
	return domain.FirstLine(string(data)), nil
}

// ReadLines returns the non-empty lines of path, CR/LF stripped.
func (fm *FileSystemManagerImpl) ReadLines(path string) ([]string, error) {
	data, err := readSmallFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSuffix(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// ListDirs returns subdirectory names of dir in lexical order.
// Symlinks are not followed.
func (fm *FileSystemManagerImpl) ListDirs(dir string) ([]string, error) {
	return listEntries(dir, func(e os.DirEntry) bool { return e.IsDir() })
}

// ListFiles returns regular file names in dir in lexical order.
func (fm *FileSystemManagerImpl) ListFiles(dir string) ([]string, error) {
	return listEntries(dir, func(e os.DirEntry) bool { return e.Type().IsRegular() })
}

func listEntries(dir string, keep func(os.DirEntry) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if keep(e) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func readSmallFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxValueFileSize {
		return nil, fmt.Errorf("file too big: %s (%d bytes)", path, info.Size())
	}
	return os.ReadFile(path)
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
