package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/benchmark"
	"github.com/anchorlab/anchorbench/internal/generator"
	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/verify"
	"github.com/anchorlab/anchorbench/pkg/brave"
	"github.com/anchorlab/anchorbench/pkg/github"
	"github.com/anchorlab/anchorbench/pkg/pypi"
	"github.com/anchorlab/anchorbench/pkg/reddit"
	"github.com/anchorlab/anchorbench/pkg/wikipedia"
)

var (
	generateDomains string
	generateCount   int
	generateForce   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate benchmark questions from external sources",
	Long: "Sources fact candidates per domain, verifies their rarity against web " +
		"search, and writes admitted questions to per-domain benchmark files. " +
		"Domains whose source is unreachable are skipped with a warning.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		heuristics, err := generator.LoadHeuristics(cfg.Generate.DomainsFile)
		if err != nil {
			return err
		}

		registry := buildRegistry(heuristics)

		domains := registry.Domains()
		if generateDomains != "" {
			domains, err = parseDomains(generateDomains)
			if err != nil {
				return err
			}
		}

		deps, cleanup, err := buildGenerateDeps(ctx, heuristics)
		if err != nil {
			return err
		}
		defer cleanup()

		for _, domain := range domains {
			log := zap.L().With(zap.String("domain", string(domain)))

			if !generateForce && benchmark.Exists(cfg.Benchmark.Dir, domain) {
				log.Info("benchmark file exists, skipping (use --force to regenerate)")
				continue
			}

			gen, err := registry.Get(domain)
			if err != nil {
				return err
			}

			log.Info("generating questions", zap.Int("count", generateCount))
			records, err := gen.Generate(ctx, generateCount, deps)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Source failures skip the domain; the others proceed.
				log.Warn("source unavailable, skipping domain", zap.Error(err))
				continue
			}
			if len(records) == 0 {
				log.Warn("no questions generated")
				continue
			}
			if len(records) < generateCount {
				log.Warn("source exhausted before target count",
					zap.Int("generated", len(records)),
					zap.Int("requested", generateCount),
				)
			}

			if _, err := benchmark.Write(cfg.Benchmark.Dir, domain, records, generateCount); err != nil {
				return err
			}
		}

		return nil
	},
}

// buildRegistry wires every domain generator to its source client.
func buildRegistry(h generator.Heuristics) *generator.Registry {
	var ghOpts []github.Option
	if cfg.GitHub.BaseURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GitHub.BaseURL))
	}
	gh := github.NewClient(cfg.GitHub.Token, ghOpts...)

	return generator.NewRegistry(
		generator.NewGitHub(gh, h),
		generator.NewGitHubPopular(gh, h),
		generator.NewReddit(reddit.NewClient(), h),
		generator.NewPyPI(pypi.NewClient()),
		generator.NewWikipedia(wikipedia.NewClient(), h),
	)
}

// buildGenerateDeps assembles the verifier, stoplist, and shared generation
// state. The returned cleanup closes the rarity cache.
func buildGenerateDeps(ctx context.Context, h generator.Heuristics) (*generator.Deps, func(), error) {
	var search brave.Client
	if cfg.Brave.Key != "" {
		var opts []brave.Option
		if cfg.Brave.BaseURL != "" {
			opts = append(opts, brave.WithBaseURL(cfg.Brave.BaseURL))
		}
		search = brave.NewClient(cfg.Brave.Key, opts...)
	} else {
		zap.L().Warn("brave.key not set, rarity verification degraded to unverified")
	}

	cleanup := func() {}
	var cache *verify.Cache
	if search != nil && cfg.Brave.CachePath != "" {
		c, err := verify.OpenCache(cfg.Brave.CachePath)
		if err != nil {
			return nil, nil, err
		}
		cache = c
		cleanup = func() {
			if err := c.Close(); err != nil {
				zap.L().Warn("close rarity cache", zap.Error(err))
			}
		}
	}

	stop := generator.LoadStoplist(ctx, cfg.Generate.WordlistURL, cfg.Generate.WordlistCache, h.FallbackStopwords)

	threshold := func(d model.Domain) int {
		return cfg.DomainThreshold(string(d))
	}

	deps := generator.NewDeps(verify.New(search, cache), stop, threshold, cfg.Generate.ProbeLimit, cfg.Generate.Concurrency)
	return deps, cleanup, nil
}

func parseDomains(csv string) ([]model.Domain, error) {
	known := make(map[model.Domain]struct{})
	for _, d := range model.KnownDomains() {
		known[d] = struct{}{}
	}

	var out []model.Domain
	for _, raw := range strings.Split(csv, ",") {
		d := model.Domain(strings.TrimSpace(raw))
		if d == "" {
			continue
		}
		if _, ok := known[d]; !ok {
			return nil, eris.Errorf("unknown domain %q", d)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, eris.New("no domains given")
	}
	return out, nil
}

func init() {
	generateCmd.Flags().StringVar(&generateDomains, "domains", "", "comma-separated domains to generate (default all)")
	generateCmd.Flags().IntVar(&generateCount, "count", 10, "questions to generate per domain")
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "regenerate even when a benchmark file exists")
	rootCmd.AddCommand(generateCmd)
}
