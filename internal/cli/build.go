package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbenr/protovis/pkg/forkchoice"
	"github.com/tbenr/protovis/pkg/graph"
	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/source"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	format       string // client format of the dump
	placeholders bool   // synthesize nodes for skipped slots
	snapshot     int    // snapshot index for history dumps, -1 = latest
	output       string // output file path (stdout if empty)
}

// newBuildCmd creates the build command, the offline path through the full
// pipeline: dump file in, graph JSON out.
func newBuildCmd() *cobra.Command {
	opts := buildOpts{format: string(source.FormatTeku), placeholders: true, snapshot: -1}

	cmd := &cobra.Command{
		Use:   "build <dump-file>",
		Short: "Assemble a fork-choice graph from a dump file",
		Long: `Assemble a fork-choice graph from a dump file.

The file may hold a single protoarray dump (a flat record array) or a
recorded history (an array of timestamped envelopes); for histories the
--snapshot flag picks which capture to build.

Examples:
  protovis build protoarray.json                       # Teku dump to stdout
  protovis build -f lighthouse dump.json -o graph.json
  protovis build history.json --snapshot 0             # oldest capture`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runBuild(c, &opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "client format: teku, lighthouse, or prysm")
	cmd.Flags().BoolVar(&opts.placeholders, "placeholders", opts.placeholders, "synthesize nodes for skipped slots")
	cmd.Flags().IntVar(&opts.snapshot, "snapshot", opts.snapshot, "snapshot index for history dumps (-1 = latest)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func runBuild(c *cobra.Command, opts *buildOpts, path string) error {
	logger := loggerFromContext(c.Context())

	f, err := source.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	snaps, err := history.ParseDump(data, f)
	if err != nil {
		return err
	}
	idx := opts.snapshot
	if idx < 0 {
		idx = len(snaps) - 1
	}
	if idx >= len(snaps) {
		return fmt.Errorf("snapshot %d out of range: dump holds %d", opts.snapshot, len(snaps))
	}
	if len(snaps) > 1 {
		logger.Infof("Dump holds %d snapshots, building %d", len(snaps), idx)
	}

	prog := newProgress(logger)
	g, err := assemble(snaps[idx].Data, f, opts.placeholders)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Assembled %d nodes with %d head candidates", len(g.Nodes), len(g.Heads)))

	return writeGraph(g, opts.output, logger)
}

// assemble runs the pipeline on one snapshot's raw dump bytes.
func assemble(data []byte, f source.Format, placeholders bool) (graph.Graph, error) {
	records, err := source.Normalize(data, f)
	if err != nil {
		return graph.Graph{}, err
	}
	tree, err := forkchoice.Reconstruct(records, placeholders)
	if err != nil {
		return graph.Graph{}, err
	}
	return graph.Assemble(tree), nil
}

// writeGraph serializes g as JSON to the specified path (or stdout if empty).
func writeGraph(g graph.Graph, path string, logger interface{ Infof(string, ...any) }) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := graph.Write(g, out); err != nil {
		return err
	}
	if path != "" {
		logger.Infof("Wrote graph to %s", path)
	}
	return nil
}

// nopCloser wraps an io.Writer with a no-op Close method, making os.Stdout
// compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// An empty path selects os.Stdout wrapped in nopCloser.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
