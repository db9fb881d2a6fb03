package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/joelanford/axscan/app"
	"github.com/joelanford/axscan/utils/keywords"
	"github.com/joelanford/axscan/utils/output"
	"github.com/joelanford/axscan/utils/scanner"
)

// ErrFindings is returned by the scan command when at least one file has
// findings, so callers can map it to a distinct exit status.
var ErrFindings = errors.New("ActiveX indicators found")

func Execute() error {
	ctx, stop := setupSignalCancellationContext()
	defer stop()
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "axscan",
		Short:         "Flag ActiveX-related code constructs in text files",
		Long:          "Scans text files for literal ActiveX and VB component indicators and reports each hit with its surrounding context.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	app.AddFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "scan <files...>",
		Short: "Scan files once and report findings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, logger, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			batch, err := Run(cmd.Context(), opts, logger, args, stdout)
			if err != nil {
				return err
			}
			if !batch.Safe() {
				return ErrFindings
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "watch <files...>",
		Short: "Scan files, then rescan each file whenever it changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, logger, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			return Watch(cmd.Context(), opts, logger, args, stdout)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "keywords",
		Short: "Print the keywords files are matched against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, _, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			kw, err := loadKeywords(opts)
			if err != nil {
				return err
			}
			for _, w := range kw.Words() {
				if reason := kw.Reason(w); reason != "" {
					fmt.Fprintf(stdout, "%s\t%s\n", w, reason)
					continue
				}
				fmt.Fprintln(stdout, w)
			}
			return nil
		},
	})

	return root
}

func setup(cmd *cobra.Command, stderr io.Writer) (*app.Opts, *slog.Logger, error) {
	v, err := app.NewConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	opts, err := app.LoadOpts(v)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid options")
	}
	logger, err := app.NewLogger(stderr, opts.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}
	return opts, logger, nil
}

// Run scans files once and writes the summary to the configured output.
func Run(ctx context.Context, opts *app.Opts, logger *slog.Logger, files []string, stdout io.Writer) (scanner.Batch, error) {
	sess, err := newSession(opts, logger, stdout)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return sess.scan(ctx, files)
}

type session struct {
	opts    *app.Opts
	logger  *slog.Logger
	scanner *scanner.Scanner
	writer  output.SummaryWriter
	out     io.WriteCloser
}

func newSession(opts *app.Opts, logger *slog.Logger, stdout io.Writer) (*session, error) {
	//
	// Setup the keyword matcher
	//
	kw, err := loadKeywords(opts)
	if err != nil {
		return nil, err
	}
	s, err := scanner.NewScanner(kw, opts.ScannerOptions(logger)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize scanner")
	}

	//
	// Open the output file and setup the output formatter
	//
	var out io.WriteCloser
	if opts.ResultsFile == "-" {
		out = nopCloser{stdout}
	} else {
		out, err = os.Create(opts.ResultsFile)
		if err != nil {
			return nil, errors.Wrap(err, "error opening output file")
		}
	}

	var w output.SummaryWriter
	switch opts.ResultsFormat {
	case app.FormatJSON:
		w = output.NewJSONSummaryWriter(out, "", "  ")
	case app.FormatYAML:
		w = output.NewYAMLSummaryWriter(out)
	case app.FormatText:
		w = output.NewTextSummaryWriter(out, opts.NoColor || opts.ResultsFile != "-")
	default:
		out.Close()
		return nil, errors.New("invalid results format")
	}

	return &session{
		opts:    opts,
		logger:  logger,
		scanner: s,
		writer:  w,
		out:     out,
	}, nil
}

func (s *session) scan(ctx context.Context, files []string) (scanner.Batch, error) {
	start := time.Now()
	sources := make([]scanner.Source, 0, len(files))
	for _, f := range files {
		sources = append(sources, scanner.FileSource(f))
	}

	batch := s.scanner.Scan(ctx, sources...)
	sum := output.NewSummary(batch, time.Since(start), s.opts.HitsOnly)
	s.logger.Info("scan complete",
		"files", sum.Stats.FilesScanned,
		"findings", sum.Stats.TotalFindings,
		"errors", sum.Stats.FilesErrored,
		"duration", time.Since(start))

	if err := s.writer.WriteSummary(sum); err != nil {
		return nil, errors.Wrap(err, "error writing results")
	}
	return batch, nil
}

func (s *session) Close() error {
	return s.out.Close()
}

func loadKeywords(opts *app.Opts) (*keywords.Keywords, error) {
	if opts.KeywordsFile == "" {
		return keywords.Default(), nil
	}
	kw, err := keywords.Load(opts.KeywordsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading keywords")
	}
	return kw, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func setupSignalCancellationContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
