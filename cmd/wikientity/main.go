package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/antonholmquist/jason"
	"github.com/spf13/cobra"

	"wikientity/pkg/config"
	"wikientity/pkg/db"
	"wikientity/pkg/entity"
	"wikientity/pkg/probe"
	"wikientity/pkg/version"
	"wikientity/pkg/wikidata"
)

const defaultConfigPath = "configs/wikientity.yaml"

type rootOptions struct {
	configPath  string
	noCache     bool
	metricsFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "wikientity",
		Short: "Browse Wikidata entities from the command line",
		Long: `wikientity resolves Wikidata items and properties through the SPARQL endpoint,
the entity data endpoint and the search API. Responses are cached on disk.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Config file path (YAML)")
	cmd.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the on-disk response cache")
	cmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "Write request counters in Prometheus text format to this file")

	cmd.AddCommand(
		showCmd(opts),
		fromLabelCmd(opts),
		neighboursCmd(opts),
		attributesCmd(opts),
		searchCmd(opts),
		initConfigCmd(opts),
		cacheCmd(opts),
		doctorCmd(opts),
	)
	return cmd
}

// withApp wires the services, runs fn and releases everything afterwards.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(opts.configPath, opts.noCache)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := fn(cmd.Context(), a, cmd.OutOrStdout(), args); err != nil {
			return err
		}
		return a.writeMetrics(opts.metricsFile)
	}
}

func showCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|uri>",
		Short: "Show label, descriptions, images and classes of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			e, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}

			label, _, err := e.Label(ctx)
			if err != nil {
				return err
			}
			descs, err := e.Description(ctx)
			if err != nil {
				return err
			}
			images, err := e.Image(ctx)
			if err != nil {
				return err
			}
			classes, err := e.InstanceOf(ctx)
			if err != nil {
				return err
			}
			parents, err := e.SubclassOf(ctx)
			if err != nil {
				return err
			}
			if err := a.registry.PrefetchLabels(ctx, append(append([]*entity.Entity{}, classes...), parents...)); err != nil {
				return err
			}

			kind := "item"
			if e.IsProperty() {
				kind = "property"
			}
			fmt.Fprintf(out, "id:          %s\n", e.ID())
			fmt.Fprintf(out, "uri:         %s\n", e.ID().IRI())
			fmt.Fprintf(out, "kind:        %s\n", kind)
			fmt.Fprintf(out, "label:       %s\n", orDash(label))
			fmt.Fprintf(out, "description: %s\n", orDash(strings.Join(descs, "; ")))
			fmt.Fprintf(out, "image:       %s\n", orDash(strings.Join(images, " ")))
			fmt.Fprintf(out, "instance of: %s\n", orDash(describeAll(classes)))
			fmt.Fprintf(out, "subclass of: %s\n", orDash(describeAll(parents)))
			return nil
		}),
	}
}

func fromLabelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "from-label <label>",
		Short: "List entities whose label matches exactly",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			found, err := a.registry.FromLabel(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.registry.PrefetchLabels(ctx, found); err != nil {
				return err
			}
			for _, e := range found {
				fmt.Fprintln(out, describe(e))
			}
			return nil
		}),
	}
}

func neighboursCmd(opts *rootOptions) *cobra.Command {
	var direction string
	cmd := &cobra.Command{
		Use:   "neighbours <id|uri>",
		Short: "List one-hop neighbours of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			dir, ok := wikidata.ParseDirection(direction)
			if !ok {
				return fmt.Errorf("invalid direction %q: use forward, backward or both", direction)
			}
			e, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}

			var pairs []entity.Neighbour
			switch dir {
			case wikidata.Forward:
				pairs, err = e.ForwardNeighbours(ctx)
			case wikidata.Backward:
				pairs, err = e.BackwardNeighbours(ctx)
			default:
				pairs, err = e.OneHopNeighbours(ctx)
			}
			if err != nil {
				return err
			}

			ents := make([]*entity.Entity, 0, 2*len(pairs))
			for _, p := range pairs {
				ents = append(ents, p.Property, p.Object)
			}
			if err := a.registry.PrefetchLabels(ctx, ents); err != nil {
				return err
			}
			for _, p := range pairs {
				fmt.Fprintf(out, "%s\t%s\n", describe(p.Property), describe(p.Object))
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&direction, "direction", "d", "both", "forward, backward or both")
	return cmd
}

func attributesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attributes <id|uri>",
		Short: "List the properties an entity has claims for",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			e, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			return e.Attributes().Range(ctx, func(pid string, claims []*jason.Object) bool {
				fmt.Fprintf(out, "%s\t%d\n", pid, len(claims))
				return true
			})
		}),
	}
}

func searchCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search entities by free text",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			found, err := a.registry.Search(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if err := a.registry.PrefetchLabels(ctx, found); err != nil {
				return err
			}
			for _, e := range found {
				fmt.Fprintln(out, describe(e))
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results (0 = all)")
	return cmd
}

func initConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(opts.configPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", opts.configPath)
			return nil
		},
	}
}

func cacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the on-disk response cache",
	}

	var olderThan string
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached responses older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := config.ParseDuration(olderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than: %w", err)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			d, err := db.Init(cfg.Cache.Path())
			if err != nil {
				return err
			}
			defer d.Close()

			removed, err := d.PruneCache(age)
			if err != nil {
				return fmt.Errorf("failed to prune cache: %w", err)
			}
			left, err := d.CacheEntries()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d cached responses, %d left\n", removed, left)
			return nil
		},
	}
	prune.Flags().StringVar(&olderThan, "older-than", "30d", "Age threshold (e.g. 12h, 30d, 2w)")

	cmd.AddCommand(prune)
	return cmd
}

func doctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured endpoints and the cache are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Always go upstream; a cached answer proves nothing about reachability.
			a, err := newApp(opts.configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			cachePath := ""
			if a.cfg.Cache.Enabled {
				cachePath = a.cfg.Cache.Path()
			}
			results := probe.Run(cmd.Context(), probe.Wikidata(a.catalog, cachePath))
			if err := probe.Report(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			return a.writeMetrics(opts.metricsFile)
		},
	}
}

// describe renders an entity as "Q90 (Paris)" when its label is known, otherwise as its id.
func describe(e *entity.Entity) string {
	if label, ok := e.CachedLabel(); ok {
		return fmt.Sprintf("%s (%s)", e.ID(), label)
	}
	return e.ID().String()
}

func describeAll(ents []*entity.Entity) string {
	parts := make([]string, len(ents))
	for i, e := range ents {
		parts[i] = describe(e)
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
