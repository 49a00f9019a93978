// Package cli locates the agent binary and builds the argv and environment
// it is started with.
//
// Discovery searches in the following order:
//  1. Explicit path in Config.CliPath (if provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// A binary older than MinimumVersion only produces a warning. The check can
// be skipped via Config.SkipVersionCheck or the AGENT_SESSION_SKIP_VERSION_CHECK
// environment variable.
//
//	path, err := cli.NewDiscoverer(&cli.Config{Logger: log}).Discover(ctx)
//	args := cli.BuildArgs(options)
//	env := cli.BuildEnvironment(options)
package cli
