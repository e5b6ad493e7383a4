package cli

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tbenr/protovis/internal/config"
	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/poller"
)

// watchOpts holds the command-line flags for the watch command. Flags left
// at their zero value defer to the config file.
type watchOpts struct {
	configPath string
	endpoint   string
	format     string
	interval   time.Duration
	limit      int
	tui        bool
}

// newWatchCmd creates the watch command, which polls a beacon node and
// records one snapshot per tick into the configured store.
func newWatchCmd() *cobra.Command {
	var opts watchOpts

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a beacon node and record fork-choice snapshots",
		Long: `Poll a beacon node's fork-choice debug endpoint on a fixed interval
and append each capture to the snapshot store.

Examples:
  protovis watch --endpoint http://localhost:5051 --format teku
  protovis watch --config protovis.toml --tui`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runWatch(c, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "beacon node URL (overrides config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "client format (overrides config)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "polling interval (overrides config)")
	cmd.Flags().IntVar(&opts.limit, "history-limit", 0, "retained snapshots (overrides config)")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show a live status view instead of log lines")

	return cmd
}

func (o *watchOpts) apply(cfg config.Config) config.Config {
	if o.endpoint != "" {
		cfg.Endpoint = o.endpoint
	}
	if o.format != "" {
		cfg.Format = o.format
	}
	if o.interval > 0 {
		cfg.Interval = config.Duration(o.interval)
	}
	if o.limit > 0 {
		cfg.HistoryLimit = o.limit
	}
	return cfg
}

func runWatch(c *cobra.Command, opts *watchOpts) error {
	ctx := c.Context()
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	cfg = opts.apply(cfg)

	f, err := cfg.SourceFormat()
	if err != nil {
		return err
	}
	endpoint, err := cfg.EndpointURL()
	if err != nil {
		return err
	}
	client, err := poller.NewClient(endpoint, f)
	if err != nil {
		return err
	}
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// The status view owns the terminal; poller logs would tear it up.
	plog := logger
	if opts.tui {
		plog = newLogger(io.Discard, charmlog.InfoLevel)
	}

	p := poller.New(client, store, time.Duration(cfg.Interval), plog)
	if !opts.tui {
		return p.Run(ctx)
	}

	prog := tea.NewProgram(newStatusModel(endpoint, f, p.Interval()))
	p.OnSnapshot = func(s history.Snapshot) { prog.Send(snapshotMsg(s)) }

	go func() {
		_ = p.Run(ctx)
		prog.Quit()
	}()
	_, err = prog.Run()
	return err
}
