package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateJointName validates a joint name for safety and correctness.
// Joint names end up in file formats, clip documents and render labels, so
// the rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No whitespace (the motion file format is whitespace-delimited)
//   - Maximum length of 256 characters
func ValidateJointName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidJoint, "joint name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidJoint, "joint name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidJoint, "joint name contains control characters")
		}
		if unicode.IsSpace(r) {
			return New(ErrCodeInvalidJoint, "joint name cannot contain whitespace: %q", name)
		}
	}

	return nil
}

// clipNameRegex matches valid clip names for the store.
var clipNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateClipName validates a clip name used as a storage key and URL
// path segment.
func ValidateClipName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidClip, "clip name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidClip, "clip name too long (max 128 characters)")
	}

	if !clipNameRegex.MatchString(name) {
		return New(ErrCodeInvalidClip, "invalid clip name: %q", name)
	}

	return nil
}

// ValidatePath validates a user-supplied file path for safety.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
