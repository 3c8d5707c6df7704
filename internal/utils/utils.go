package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	apperrors "solguardian/internal/errors"
)

// FileInfo describes a source file about to be analyzed.
type FileInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsSolidityFile reports whether the path names a Solidity source file.
func IsSolidityFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sol")
}

// GetFileInfo stats a file, returning a typed FileNotFound error when it
// does not exist.
func GetFileInfo(path string) (*FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, apperrors.NewFileNotFound(path)
	}
	return &FileInfo{
		Path:     path,
		Name:     info.Name(),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

// ReadSourceFile reads a Solidity source file with precondition checks:
// the file must exist, carry a .sol extension, and be under maxSize bytes.
// Violations surface as typed errors that abort the analysis.
func ReadSourceFile(path string, maxSize int64) (string, *FileInfo, error) {
	info, err := GetFileInfo(path)
	if err != nil {
		return "", nil, err
	}
	if !IsSolidityFile(path) {
		return "", nil, apperrors.NewNotASourceFile(path)
	}
	if info.Size > maxSize {
		return "", nil, apperrors.NewFileTooLarge(path, info.Size, maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, apperrors.NewFileNotFound(path)
	}
	return string(data), info, nil
}

// GetAppDataDir returns the OS-specific application data directory for
// solguardian, creating it if necessary.
func GetAppDataDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".local", "share")
		}
	}
	dir := filepath.Join(base, "solguardian")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// UniqueStrings returns the slice with duplicates removed, preserving
// first-occurrence order.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]bool, len(slice))
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// IsInSlice checks if a string is present in a slice.
func IsInSlice(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
