//go:build !windows

package simconnect

import "fmt"

// FindRuntime always fails outside Windows.
func FindRuntime(runtime string) (string, error) {
	return "", fmt.Errorf("finding %s: %w", runtime, ErrUnsupportedPlatform)
}

// LoadRuntimes always fails outside Windows.
func LoadRuntimes() ([]Library, error) {
	return nil, ErrUnsupportedPlatform
}
