package generator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anchorlab/anchorbench/internal/model"
	pypiapi "github.com/anchorlab/anchorbench/pkg/pypi"
)

// PyPIGenerator builds Yes/No questions about direct package requirements.
// It probes a slice of the simple index to assemble a requirement map, then
// pairs packages with either one of their real requirements or a fake-out
// drawn from another package's requirements.
type PyPIGenerator struct {
	client pypiapi.Client
}

// NewPyPI creates the PyPI generator.
func NewPyPI(client pypiapi.Client) *PyPIGenerator {
	return &PyPIGenerator{client: client}
}

func (g *PyPIGenerator) Domain() model.Domain { return model.DomainPyPI }

// pypiPackage is one probed package that declared requirements.
type pypiPackage struct {
	Name         string
	Requirements []string
	SourceURL    string
	CreatedUTC   string
}

func (g *PyPIGenerator) Generate(ctx context.Context, count int, deps *Deps) ([]model.QuestionRecord, error) {
	names, err := g.client.ListPackages(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pypi: list packages")
	}
	if len(names) == 0 {
		return nil, nil
	}

	deps.Rand.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})
	if len(names) > deps.ProbeLimit {
		names = names[:deps.ProbeLimit]
	}

	log := zap.L().With(zap.String("domain", string(g.Domain())))

	packages, allReqs := g.probePackages(ctx, names, deps.Concurrency, log)
	if len(packages) == 0 || len(allReqs) == 0 {
		log.Warn("no packages with requirements found", zap.Int("probed", len(names)))
		return nil, nil
	}
	log.Info("built requirement map",
		zap.Int("packages", len(packages)),
		zap.Int("requirements", len(allReqs)),
	)

	var records []model.QuestionRecord
	misses := 0
	for len(records) < count && misses < count*10 {
		pkg := packages[deps.Rand.IntN(len(packages))]

		var req, answer string
		if deps.Rand.IntN(2) == 0 {
			req = pkg.Requirements[deps.Rand.IntN(len(pkg.Requirements))]
			answer = "Yes"
		} else {
			req = g.fakeRequirement(pkg, allReqs, deps)
			if req == "" {
				misses++
				continue
			}
			answer = "No"
		}

		if !deps.Emitted.TryAdd(g.Domain(), pkg.Name+"\x00"+req) {
			misses++
			continue
		}

		question := "According to its PyPI listing, does the package '" + pkg.Name + "' have a direct requirement for '" + req + "'? Answer Yes or No."
		records = append(records, model.QuestionRecord{
			ID:             newID(g.Domain()),
			Domain:         g.Domain(),
			PromptText:     question,
			ExpectedAnswer: answer,
			AnswerKind:     model.AnswerBoolean,
			SourceRef:      pkg.SourceURL,
			Rarity:         model.RarityEstimate{Verified: false, Reason: "boolean question, uniqueness not checked"},
			GeneratedAt:    time.Now().UTC(),
			Metadata: map[string]any{
				"package_name":       pkg.Name,
				"question_type":      answer,
				"requirement_tested": req,
				"created_utc":        pkg.CreatedUTC,
			},
		})
	}

	return records, nil
}

// probePackages fetches metadata for the candidate names concurrently and
// keeps the packages that declare usable requirements.
func (g *PyPIGenerator) probePackages(ctx context.Context, names []string, concurrency int, log *zap.Logger) ([]pypiPackage, []string) {
	var mu sync.Mutex
	var packages []pypiPackage
	reqSet := make(map[string]struct{})

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)
	for _, name := range names {
		grp.Go(func() error {
			meta, err := g.client.Metadata(gctx, name)
			if err != nil {
				log.Debug("package probe failed", zap.String("package", name), zap.Error(err))
				return nil
			}

			reqs := directRequirements(meta.Info.RequiresDist)
			if len(reqs) == 0 {
				return nil
			}

			pkg := pypiPackage{
				Name:         meta.Info.Name,
				Requirements: reqs,
				SourceURL:    meta.Info.PackageURL,
				CreatedUTC:   earliestUpload(meta.Releases),
			}

			mu.Lock()
			packages = append(packages, pkg)
			for _, r := range reqs {
				reqSet[r] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	allReqs := make([]string, 0, len(reqSet))
	for r := range reqSet {
		allReqs = append(allReqs, r)
	}
	return packages, allReqs
}

// fakeRequirement picks a requirement the package does not declare.
func (g *PyPIGenerator) fakeRequirement(pkg pypiPackage, allReqs []string, deps *Deps) string {
	for range 20 {
		req := allReqs[deps.Rand.IntN(len(allReqs))]
		declared := false
		for _, r := range pkg.Requirements {
			if r == req {
				declared = true
				break
			}
		}
		if !declared {
			return req
		}
	}
	return ""
}

// directRequirements keeps only unconditional requirements that pin a
// version. Environment-marked requirements (a ";" clause) are too easy to
// argue about.
func directRequirements(requiresDist []string) []string {
	var out []string
	for _, r := range requiresDist {
		if r == "" || strings.Contains(r, ";") {
			continue
		}
		if strings.ContainsAny(r, "=<>") {
			out = append(out, r)
		}
	}
	return out
}

// earliestUpload returns the oldest upload timestamp across all releases.
func earliestUpload(releases map[string][]pypiapi.ReleaseUpload) string {
	earliest := ""
	for _, uploads := range releases {
		for _, u := range uploads {
			if u.UploadTime == "" {
				continue
			}
			if earliest == "" || u.UploadTime < earliest {
				earliest = u.UploadTime
			}
		}
	}
	return earliest
}
