package cli

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/agentsession-go/internal/errors"
)

const (
	// BinaryName is the executable looked up on PATH.
	BinaryName = "claude"

	// MinimumVersion is the oldest binary version known to speak the
	// stream-json control protocol.
	MinimumVersion = "2.0.0"

	// SkipVersionCheckEnv disables the version check when set.
	SkipVersionCheckEnv = "AGENT_SESSION_SKIP_VERSION_CHECK"

	// VersionCheckTimeout bounds the "<binary> -v" probe.
	VersionCheckTimeout = 2 * time.Second
)

// Config holds configuration for binary discovery.
type Config struct {
	// CliPath pins the binary. When set, nothing else is searched.
	CliPath string

	// SkipVersionCheck disables the version probe. SkipVersionCheckEnv has
	// the same effect.
	SkipVersionCheck bool

	Logger *slog.Logger
}

// Discoverer locates and validates the agent binary.
type Discoverer interface {
	// Discover returns the path of the binary to spawn, or a
	// *errors.CLINotFoundError listing every location tried.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a Discoverer. A nil cfg searches the defaults.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "discovery"),
	}
}

// Discover implements Discoverer. A version below MinimumVersion is logged,
// not rejected.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	path, err := d.locate()
	if err != nil {
		d.log.Error("agent binary not found", "error", err)

		return "", err
	}

	d.log.Debug("agent binary located", "cli_path", path)

	if d.versionCheckEnabled() {
		d.checkVersion(ctx, path)
	}

	return path, nil
}

// locate tries the explicit path, then PATH, then the well-known install
// directories, in that order.
func (d *discoverer) locate() (string, error) {
	if d.cfg.CliPath != "" {
		if fileExists(d.cfg.CliPath) {
			return d.cfg.CliPath, nil
		}

		return "", &errors.CLINotFoundError{SearchedPaths: []string{d.cfg.CliPath}}
	}

	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	searched := []string{"$PATH"}

	for _, path := range fallbackPaths() {
		searched = append(searched, path)

		if fileExists(path) {
			return path, nil
		}
	}

	return "", &errors.CLINotFoundError{SearchedPaths: searched}
}

func fallbackPaths() []string {
	paths := []string{
		filepath.Join("/usr/local/bin", BinaryName),
		filepath.Join("/usr/bin", BinaryName),
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".local", "bin", BinaryName),
			filepath.Join(home, ".claude", "local", BinaryName),
		)
	}

	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

func (d *discoverer) versionCheckEnabled() bool {
	return !d.cfg.SkipVersionCheck && os.Getenv(SkipVersionCheckEnv) == ""
}

func (d *discoverer) checkVersion(ctx context.Context, path string) {
	version, err := probeVersion(ctx, path)
	if err != nil {
		d.log.Debug("version probe failed", "error", err)

		return
	}

	if compareVersions(version, MinimumVersion) < 0 {
		d.log.Warn("agent binary is older than supported",
			"version", version,
			"minimum_required", MinimumVersion,
		)

		return
	}

	d.log.Debug("version check passed", "version", version)
}

var versionPattern = regexp.MustCompile(`^v?([0-9]+\.[0-9]+\.[0-9]+)`)

// probeVersion runs "<path> -v" and extracts the leading x.y.z.
func probeVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-v").Output()
	if err != nil {
		return "", err
	}

	match := versionPattern.FindStringSubmatch(strings.TrimSpace(string(out)))
	if match == nil {
		return "", fmt.Errorf("unrecognized version output %q", out)
	}

	return match[1], nil
}

// compareVersions orders two dotted versions numerically, treating missing
// components as zero.
func compareVersions(a, b string) int {
	return slices.CompareFunc(versionParts(a), versionParts(b), cmp.Compare[int])
}

func versionParts(v string) []int {
	parts := make([]int, 3)

	for i, s := range strings.Split(v, ".") {
		if i >= len(parts) {
			break
		}

		parts[i], _ = strconv.Atoi(s)
	}

	return parts
}
