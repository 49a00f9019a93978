package config

import (
	"fmt"

	"github.com/wagiedev/agentsession-go/internal/permission"
)

// NormalizePermissionMode maps legacy permission mode names to current values.
//
// Legacy mappings:
//   - "acceptAll" -> "bypassPermissions"
//   - "prompt" -> "default"
func NormalizePermissionMode(mode string) string {
	switch mode {
	case "acceptAll":
		return "bypassPermissions"
	case "prompt":
		return "default"
	default:
		return mode
	}
}

// ParsePermissionMode normalizes mode and checks it is known. Empty means
// permission.ModeDefault.
func ParsePermissionMode(mode string) (permission.Mode, error) {
	if mode == "" {
		return permission.ModeDefault, nil
	}

	m := permission.Mode(NormalizePermissionMode(mode))
	if !m.Valid() {
		return "", fmt.Errorf("unknown permission mode %q", mode)
	}

	return m, nil
}
