// Package main provides the gencon binary entry point.
// Gencon drives the construct editor state store from the command line:
// it imports and exports project rollups, expands combinatorial constructs,
// samples orders and maintains the sequence store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"gencon/internal/config"
	"gencon/internal/core"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath  string
	logMode     string
	dumpMetrics bool
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "gencon",
		Short: "Genetic construct editor state tools",
		Long: `Gencon works against the construct editor state store.

It provides:
- rollup import, export and listing against the configured rollup store
- combinatorial expansion of constructs with list blocks
- order sampling over a construct's combinations
- sequence upload, download and pruning against the blob store`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logMode, "log-mode", "", "Override log mode (development, production)")
	cmd.PersistentFlags().BoolVar(&opts.dumpMetrics, "metrics", false, "Print operation metrics to stderr on exit")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gencon %s (%s)\n", Version, runtime.Version())
		},
	})
	cmd.AddCommand(configCmd(opts))
	cmd.AddCommand(rollupCmd(opts))
	cmd.AddCommand(combinationsCmd(opts))
	cmd.AddCommand(orderCmd(opts))
	cmd.AddCommand(sequenceCmd(opts))
	return cmd
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logMode != "" {
		cfg.Log.Mode = o.logMode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// run builds the app from configuration, calls fn and tears the app down.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error, extra ...core.Option) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, extra...)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if o.dumpMetrics {
		if err := a.writeMetrics(cmd.ErrOrStderr()); err != nil {
			a.logger.Warn("write metrics", "error", err)
		}
	}
	if err := a.close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// writeMetrics prints the expvar snapshot followed by the prometheus
// families gathered for this invocation.
func (a *app) writeMetrics(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.expvar.Snapshot()); err != nil {
		return err
	}
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(w, "%s%s count=%d sum=%g\n", mf.GetName(), labels, m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
