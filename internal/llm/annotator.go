package llm

import (
	"context"
	"sort"

	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/worker"
)

// Annotator picks the weakest clusters of a run and asks a provider to
// review them. The review lands in the run report as prose.
type Annotator struct {
	provider Provider
	limiter  *worker.Limiter
	cfg      model.LLMConfig

	// MaxClusters bounds how many clusters go into one review
	MaxClusters int

	// ConfidenceCeiling selects which clusters count as weak
	ConfidenceCeiling float64
}

// NewAnnotator creates an annotator, or nil when no provider is
// configured.
func NewAnnotator(cfg model.LLMConfig) (*Annotator, error) {
	provider, err := NewProvider(ConfigFromModel(cfg))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	rate := cfg.RatePerSecond
	if rate <= 0 {
		rate = 1
	}

	return &Annotator{
		provider:          provider,
		limiter:           worker.NewLimiter(rate, 1),
		cfg:               cfg,
		MaxClusters:       10,
		ConfidenceCeiling: 0.90,
	}, nil
}

// Annotate reviews the weakest multi-mention clusters and attaches the
// result to the report. Errors are returned rather than written into
// the report; the caller decides whether a failed review matters.
func (a *Annotator) Annotate(ctx context.Context, entities []model.CanonicalEntity, report *model.RunReport) error {
	digests := a.selectClusters(entities)
	if len(digests) == 0 {
		return nil
	}

	if err := a.limiter.Wait(ctx, a.provider.Name()); err != nil {
		return err
	}

	resp, err := a.provider.Annotate(ctx, AnnotateRequest{Clusters: digests})
	if err != nil {
		return err
	}

	report.Annotation = &model.Annotation{
		Provider:   a.provider.Name(),
		Model:      resp.Model,
		Review:     resp.Review,
		Clusters:   len(digests),
		TokensUsed: resp.TokensUsed,
	}
	return nil
}

// selectClusters returns digests for multi-mention clusters under the
// confidence ceiling, weakest first. Singletons are always confident
// and never reviewed.
func (a *Annotator) selectClusters(entities []model.CanonicalEntity) []ClusterDigest {
	var weak []model.CanonicalEntity
	for _, e := range entities {
		if len(e.Mentions) > 1 && e.Confidence < a.ConfidenceCeiling {
			weak = append(weak, e)
		}
	}

	sort.Slice(weak, func(i, j int) bool {
		if weak[i].Confidence != weak[j].Confidence {
			return weak[i].Confidence < weak[j].Confidence
		}
		return weak[i].ID < weak[j].ID
	})

	if len(weak) > a.MaxClusters {
		weak = weak[:a.MaxClusters]
	}

	digests := make([]ClusterDigest, 0, len(weak))
	for _, e := range weak {
		digests = append(digests, ClusterDigest{
			EntityID:   e.ID,
			Type:       e.Type,
			Name:       e.Name,
			Confidence: e.Confidence,
			Mentions:   e.Mentions,
			Aliases:    aliasList(e),
		})
	}
	return digests
}

func aliasList(e model.CanonicalEntity) []string {
	seen := map[string]bool{e.Name: true}
	var aliases []string
	for _, attr := range e.Attributes {
		if attr.Value.Kind == model.KindString && attr.Value.Text != e.Name && !seen[attr.Value.Text] {
			seen[attr.Value.Text] = true
			aliases = append(aliases, attr.Value.Text)
		}
	}
	sort.Strings(aliases)
	return aliases
}
