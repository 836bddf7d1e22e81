package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gencon/internal/config"
	"gencon/internal/core"
	"gencon/pkg/domain"
)

func configCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gencon configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "gencon.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer func() { _ = enc.Close() }()
			return enc.Encode(cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func rollupCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Import, export and list stored project rollups",
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a rollup file and write it to the rollup store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rollup, err := readRollup(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.editor.LoadRollup(ctx, rollup); err != nil {
					return err
				}
				version, _, err := a.editor.ProjectSave(ctx, rollup.Project.ID, true)
				if err != nil {
					return err
				}
				a.logger.Info("rollup imported", "project", rollup.Project.ID, "version", version, "blocks", len(rollup.Blocks))
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s version %d\n", rollup.Project.ID, version)
				return nil
			})
		},
	}

	var projectID, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored rollup as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				rollup, _, err := a.editor.ProjectLoad(ctx, projectID)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return writeJSON(cmd.OutOrStdout(), rollup)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := writeJSON(f, rollup); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	exportCmd.Flags().StringVar(&projectID, "project", "", "Project id to export")
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("project")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				projects, err := a.editor.ProjectList(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tVERSION\tCONSTRUCTS")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", p.ID, p.Metadata.Name, p.Version, len(p.Components))
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(importCmd, exportCmd, listCmd)
	return cmd
}

// combinationsResult is the JSON printed by the combinations command.
type combinationsResult struct {
	Construct    string     `json:"construct"`
	Count        int        `json:"count"`
	Positions    [][]string `json:"positions"`
	Combinations [][]string `json:"combinations,omitempty"`
}

func combinationsCmd(opts *options) *cobra.Command {
	var (
		constructID string
		all         bool
		unselected  bool
	)
	cmd := &cobra.Command{
		Use:   "combinations <rollup-file>",
		Short: "Expand the combinations of a construct in a rollup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rollup, err := readRollup(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.editor.LoadRollup(ctx, rollup); err != nil {
					return err
				}
				positions, err := a.editor.PositionalCombinations(constructID, unselected)
				if err != nil {
					return err
				}
				count, err := a.editor.NumberOfCombinations(constructID)
				if err != nil {
					return err
				}
				res := combinationsResult{Construct: constructID, Count: count, Positions: positions}
				if all {
					res.Combinations, err = a.editor.AllCombinations(constructID)
					if err != nil {
						return err
					}
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&constructID, "construct", "", "Construct block id")
	cmd.Flags().BoolVar(&all, "all", false, "Also print every combination")
	cmd.Flags().BoolVar(&unselected, "include-unselected", false, "Include unselected list options in positions")
	_ = cmd.MarkFlagRequired("construct")
	return cmd
}

// sampleResult is the JSON printed by order sample.
type sampleResult struct {
	Order              string     `json:"order"`
	NumberCombinations int        `json:"numberCombinations"`
	Method             string     `json:"method"`
	ActiveIndices      []int      `json:"activeIndices"`
	Combinations       [][]string `json:"combinations"`
}

func orderCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Plan orders over combinatorial constructs",
	}

	var (
		constructIDs []string
		permutations int
		method       string
		seed         uint64
	)
	sampleCmd := &cobra.Command{
		Use:   "sample <rollup-file>",
		Short: "Sample the combinations an order would assemble",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rollup, err := readRollup(args[0])
			if err != nil {
				return err
			}
			var extra []core.Option
			if cmd.Flags().Changed("seed") {
				extra = append(extra, core.WithRand(rand.New(rand.NewPCG(seed, seed))))
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.editor.LoadRollup(ctx, rollup); err != nil {
					return err
				}
				ids := constructIDs
				if len(ids) == 0 {
					ids = rollup.Project.Components
				}
				order, _, err := a.editor.OrderCreate(ctx, rollup.Project.ID, ids)
				if err != nil {
					return err
				}
				order, _, err = a.editor.OrderSetParameters(ctx, order.ID, domain.OrderParameters{
					Permutations:        permutations,
					CombinatorialMethod: method,
				})
				if err != nil {
					return err
				}
				combos, err := a.editor.OrderCombinations(order.ID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sampleResult{
					Order:              order.ID,
					NumberCombinations: order.NumberCombinations,
					Method:             order.Parameters.CombinatorialMethod,
					ActiveIndices:      order.ActiveIndices(),
					Combinations:       combos,
				})
			}, extra...)
		},
	}
	sampleCmd.Flags().StringSliceVar(&constructIDs, "construct", nil, "Construct ids (default every project construct)")
	sampleCmd.Flags().IntVarP(&permutations, "permutations", "n", 1, "Number of combinations to order")
	sampleCmd.Flags().StringVar(&method, "method", domain.MethodRandomSubset, "Sampling method (\"Random Subset\", \"Maximum Unique Set\")")
	sampleCmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for random subset sampling")

	cmd.AddCommand(sampleCmd)
	return cmd
}

func sequenceCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Manage stored sequences",
	}

	putCmd := &cobra.Command{
		Use:   "put <file|->",
		Short: "Store sequence bases and print their md5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			bases := strings.Join(strings.Fields(string(raw)), "")
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				ref, err := a.sequences.Put(ctx, bases)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", ref.MD5, ref.Length)
				return nil
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <md5[start:end]>",
		Short: "Print stored sequence bases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				bases, err := a.sequences.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), bases)
				return nil
			})
		},
	}

	var dryRun bool
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sequences no stored rollup references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				keep, err := a.keepSequences(ctx)
				if err != nil {
					return err
				}
				if dryRun {
					hashes, err := a.sequences.List(ctx)
					if err != nil {
						return err
					}
					for _, h := range hashes {
						if !keep[h] {
							fmt.Fprintln(cmd.OutOrStdout(), h)
						}
					}
					return nil
				}
				removed, err := a.sequences.Prune(ctx, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", removed)
				return nil
			})
		},
	}
	pruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list unreferenced sequences")

	cmd.AddCommand(putCmd, getCmd, pruneCmd)
	return cmd
}

func readRollup(path string) (domain.Rollup, error) {
	var rollup domain.Rollup
	raw, err := os.ReadFile(path)
	if err != nil {
		return rollup, err
	}
	if err := json.Unmarshal(raw, &rollup); err != nil {
		return rollup, fmt.Errorf("decode %s: %w", path, err)
	}
	if rollup.Project.ID == "" {
		return rollup, errors.New("rollup has no project id")
	}
	return rollup, nil
}
