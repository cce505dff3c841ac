package ipc

import "path/filepath"

const (
	// SocketName is the socket file name inside the runtime directory.
	SocketName = "sentinel.sock"

	// FallbackSocketPath is used when no runtime directory is known.
	FallbackSocketPath = "/tmp/sentinel.sock"
)

// ResolveSocketPath picks the control socket location. The first non-empty
// source wins: override, then runtimeDir/SocketName, then
// FallbackSocketPath.
func ResolveSocketPath(override, runtimeDir string) string {
	if override != "" {
		return override
	}
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, SocketName)
	}
	return FallbackSocketPath
}
