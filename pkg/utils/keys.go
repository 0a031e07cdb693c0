package utils

import (
	"fmt"
	"strings"
)

// CleanFolder trims surrounding separators and collapses empty segments, so
// "/docs//2024/" becomes "docs/2024". The empty string means the root.
func CleanFolder(folder string) string {
	parts := strings.Split(folder, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// ValidateSegment checks a single name that becomes part of an object key.
//
// Returns an error if the name:
//   - is empty or only whitespace
//   - contains a separator or a backslash
//   - is "." or ".."
func ValidateSegment(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("name contains a path separator: %s", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name is a relative path element: %s", name)
	}
	return nil
}

// ValidateFolderPath validates a relative folder path of one or more
// segments. The empty path is valid and denotes the root.
//
// Example usage:
//
//	if err := ValidateFolderPath(req.Folder); err != nil {
//		return errors.Validation(err.Error())
//	}
func ValidateFolderPath(folder string) error {
	clean := CleanFolder(folder)
	if clean == "" {
		return nil
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("folder contains directory traversal: %s", folder)
		}
		if strings.Contains(seg, "\\") {
			return fmt.Errorf("folder contains a backslash: %s", folder)
		}
	}
	return nil
}

// LastSegment returns the final non-empty segment of a key.
func LastSegment(key string) string {
	clean := CleanFolder(key)
	if i := strings.LastIndex(clean, "/"); i >= 0 {
		return clean[i+1:]
	}
	return clean
}

// ParentFolder returns everything before the last segment of a folder path,
// or "" for a top-level folder.
func ParentFolder(folder string) string {
	clean := CleanFolder(folder)
	if i := strings.LastIndex(clean, "/"); i >= 0 {
		return clean[:i]
	}
	return ""
}
