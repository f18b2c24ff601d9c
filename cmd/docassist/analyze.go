package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/config"
	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/internal/session"
)

type analyzeOptions struct {
	out string
}

func newUploadCommand() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "upload <report.pdf>",
		Short: "Analyze a PDF blood report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}

			return analyze(cmd, opts, acquisition.ModeUpload, func(c *session.Controller) error {
				return c.Attach(filepath.Base(args[0]), data)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the PDF report to this path")
	return cmd
}

func newManualCommand() *cobra.Command {
	var (
		opts   analyzeOptions
		values map[string]string
	)

	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Enter blood panel values and analyze them",
		Long: "Prompts for each blood panel field in entry order. Fields given with " +
			"--value are not prompted for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			preset, err := presetValues(values)
			if err != nil {
				return err
			}

			return analyze(cmd, opts, acquisition.ModeManual, func(c *session.Controller) error {
				return fillPanel(c, preset, bufio.NewScanner(cmd.InOrStdin()), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the PDF report to this path")
	cmd.Flags().StringToStringVar(&values, "value", nil, "preset a field, e.g. --value Hemoglobin=14.2")
	return cmd
}

// analyze runs one in-process session: capture input, submit, print the
// narrative as it is revealed and optionally write the report.
func analyze(cmd *cobra.Command, opts analyzeOptions, mode acquisition.Mode, capture func(*session.Controller) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	exporter := export.New(&cfg.Export, logger)

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	c := session.New(
		id,
		prediction.New(&cfg.Prediction, logger),
		exporter,
		logger,
		session.WithInterval(cfg.Reveal.IntervalDuration()),
	)
	defer c.Close()

	if err := c.SelectMode(mode); err != nil {
		return err
	}
	if err := capture(c); err != nil {
		return err
	}

	final, err := run(cmd.Context(), c, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if opts.out == "" {
		return nil
	}

	doc, err := c.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s (%d pages, prediction %q)\n", opts.out, doc.Pages, final.Prediction)
	return nil
}

// run submits the captured input and prints the reveal until the session
// reaches a terminal phase.
func run(ctx context.Context, c *session.Controller, out io.Writer) (session.Snapshot, error) {
	snaps, cancel := c.Subscribe()
	defer cancel()

	var final session.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printed := 0
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case snap, ok := <-snaps:
				if !ok {
					return session.ErrClosed
				}
				if len(snap.Revealed) > printed {
					io.WriteString(out, snap.Revealed[printed:])
					printed = len(snap.Revealed)
				}
				if !snap.Terminal() {
					continue
				}
				final = snap
				if snap.Phase == session.PhaseFailed {
					return errors.New(snap.Error)
				}
				io.WriteString(out, "\n")
				return nil
			}
		}
	})

	g.Go(func() error {
		_, err := c.Submit(gctx)
		return err
	})

	return final, g.Wait()
}

// fillPanel enters every field, using preset values where given and
// prompting otherwise. A rejected prompt answer is explained and asked again.
func fillPanel(c *session.Controller, preset map[panel.Field]string, in *bufio.Scanner, out io.Writer) error {
	for _, spec := range panel.Specs() {
		if raw, ok := preset[spec.Field]; ok {
			if strings.TrimSpace(raw) == "" {
				return fmt.Errorf("%w: %s is empty", acquisition.ErrIncompletePanel, spec.Field)
			}
			if err := enter(c, spec.Field, raw); err != nil {
				return err
			}
			continue
		}

		for {
			fmt.Fprintf(out, "%s %s: ", spec.Field, hint(spec))
			if !in.Scan() {
				if err := in.Err(); err != nil {
					return err
				}
				return fmt.Errorf("input ended before %s was entered", spec.Field)
			}

			if strings.TrimSpace(in.Text()) == "" {
				continue
			}
			err := enter(c, spec.Field, in.Text())
			if err == nil {
				break
			}
			var ve *panel.ValidationError
			if !errors.As(err, &ve) {
				return err
			}
			fmt.Fprintln(out, ve.Error())
		}
	}
	return nil
}

func enter(c *session.Controller, f panel.Field, raw string) error {
	if err := c.Edit(f, raw); err != nil {
		return err
	}
	return c.Blur(f)
}

func hint(spec panel.Spec) string {
	if !spec.Numeric() {
		return "(" + strings.Join(panel.SexCodes, "/") + ")"
	}
	return fmt.Sprintf("(%g-%g)", spec.Min, spec.Max)
}

func presetValues(values map[string]string) (map[panel.Field]string, error) {
	preset := make(map[panel.Field]string, len(values))
	for name, raw := range values {
		f, err := panel.ParseField(name)
		if err != nil {
			return nil, err
		}
		preset[f] = raw
	}
	return preset, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
