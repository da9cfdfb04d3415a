package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/rbr-console/internal/config"
	"github.com/felixgeelhaar/rbr-console/internal/directory"
	"github.com/felixgeelhaar/rbr-console/internal/errors"
	"github.com/felixgeelhaar/rbr-console/internal/log"
	"github.com/felixgeelhaar/rbr-console/internal/version"
)

// CommandContext holds the configuration and logger for one command run.
// Commands build it in their RunE function:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cc, err := NewCommandContext(cmd, false)
//		if err != nil {
//			return err
//		}
//		defer cc.Close()
//	}
type CommandContext struct {
	Config *config.Config
	Logger *log.Logger

	closeLog func() error
}

// NewCommandContext loads configuration named by the --config and
// --base-url flags. With logToFile set, logs go to the configured log file
// so nothing is written over a full-screen program; otherwise they go to
// the command's stderr.
func NewCommandContext(cmd *cobra.Command, logToFile bool) (*CommandContext, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	baseURL, err := cmd.Flags().GetString("base-url")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	var out io.Writer = cmd.ErrOrStderr()
	closeLog := func() error { return nil }
	if logToFile {
		f, err := log.OpenFile(cfg.LogFile())
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to open log file", err).
				WithSuggestion("Set log.file in the config file to a writable path")
		}
		out = f
		closeLog = f.Close
	}

	logger := log.New(cfg.LoggerConfig(out, version.Version))
	log.SetDefaultLogger(logger)

	return &CommandContext{
		Config:   cfg,
		Logger:   logger,
		closeLog: closeLog,
	}, nil
}

// Client returns a directory client for baseURL that sends tokens from
// the given source.
func (c *CommandContext) Client(baseURL string, tokens directory.TokenSource) *directory.Client {
	return directory.New(baseURL, tokens,
		directory.WithTimeout(c.Config.RequestTimeout()),
		directory.WithUserAgent(version.GetInfo().UserAgent()),
		directory.WithLogger(c.Logger),
	)
}

// Close releases the log file, if any.
func (c *CommandContext) Close() error {
	return c.closeLog()
}
