// Package pipeline wires the stages together: read, normalize, resolve,
// assemble, export, report.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mbarbier/studium/internal/assemble"
	"github.com/mbarbier/studium/internal/cache"
	"github.com/mbarbier/studium/internal/export"
	"github.com/mbarbier/studium/internal/llm"
	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/normalize"
	"github.com/mbarbier/studium/internal/resolve"
	"github.com/mbarbier/studium/internal/schema"
	"github.com/mbarbier/studium/internal/worker"
)

// maxRecordBytes bounds one input line; register transcriptions are
// short, anything past this is a corrupt file.
const maxRecordBytes = 1 << 20

// Pipeline runs one consolidation pass over a factoid file
type Pipeline struct {
	registry *schema.Registry
	cfg      *model.Config
	log      *zap.Logger
}

// New creates a pipeline
func New(registry *schema.Registry, cfg *model.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{registry: registry, cfg: cfg, log: log}
}

// Run processes the JSONL factoid file at inputPath and writes the
// export tables and the run report under the configured output dir.
// Record-level problems are accumulated in the report; only structural
// failures (unreadable input, contract violations, export errors)
// abort the run.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*model.RunReport, error) {
	report := &model.RunReport{StartedAt: time.Now().UTC()}

	raws, err := p.readRecords(inputPath, report)
	if err != nil {
		return nil, err
	}
	p.log.Info("records read",
		zap.Int("records", report.RecordsRead),
		zap.Int("malformed", report.Rejected))

	mentions := p.normalizeAll(ctx, raws, report)
	p.log.Info("normalization done",
		zap.Int("normalized", report.Normalized),
		zap.Int("rejected", report.Rejected),
		zap.Int("warnings", report.WarningCount))

	resolver, err := resolve.NewResolver(p.registry, p.cfg.Resolver)
	if err != nil {
		return nil, err
	}
	resolved, err := resolver.Resolve(mentions)
	if err != nil {
		return nil, err
	}
	report.Entities = len(resolved.Entities)
	report.MergedPairs = resolved.MergedPairs
	report.SeparatorHits = resolved.SeparatorHits
	p.log.Info("resolution done",
		zap.Int("entities", report.Entities),
		zap.Int("merged_pairs", report.MergedPairs),
		zap.Int("separator_hits", report.SeparatorHits))

	assembler := assemble.NewAssembler(p.registry, p.cfg.Resolver, p.lookupCache(), p.cfg.Cache.TTL)
	graph := assembler.Assemble(resolved, mentions, report)
	p.log.Info("assembly done",
		zap.Int("relations", report.Relations),
		zap.Int("unresolved", report.Unresolved))

	entityRows, relationRows, err := export.NewSerializer(p.cfg.Output.Dir).Write(graph)
	if err != nil {
		return nil, err
	}
	p.log.Info("export written",
		zap.String("dir", p.cfg.Output.Dir),
		zap.Int("entity_rows", entityRows),
		zap.Int("relation_rows", relationRows))

	p.annotate(ctx, resolved.Entities, report)

	report.FinishedAt = time.Now().UTC()
	if err := p.writeReport(report); err != nil {
		return nil, err
	}
	return report, nil
}

// readRecords reads one JSON factoid per line. Malformed lines are
// rejected, not fatal.
func (p *Pipeline) readRecords(path string, report *model.RunReport) ([]model.RawFactoid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open input: %w", err)
	}
	defer f.Close()

	var raws []model.RawFactoid
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		report.RecordsRead++

		var raw model.RawFactoid
		if err := json.Unmarshal(data, &raw); err != nil {
			report.AddRejection(fmt.Sprintf("line %d", line), "malformed json")
			continue
		}
		if raw.RecordID == "" {
			report.AddRejection(fmt.Sprintf("line %d", line), "missing record_id")
			continue
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: read input: %w", err)
	}
	return raws, nil
}

// normalizeAll fans the records out over the worker pool and stitches
// the results back in input order, so the report reads the same no
// matter how the workers were scheduled.
func (p *Pipeline) normalizeAll(ctx context.Context, raws []model.RawFactoid, report *model.RunReport) []*model.Mention {
	normalizer := normalize.NewNormalizer(p.registry)

	pool := worker.NewPool(p.cfg.Concurrency.NormalizeWorkers)
	pool.Start()
	stop := context.AfterFunc(ctx, pool.Shutdown)
	defer stop()
	for i, raw := range raws {
		pool.Submit(&worker.NormalizeJob{Seq: i, Raw: raw, Normalizer: normalizer})
	}
	results := pool.Wait()

	ordered := make([]*worker.NormalizeResult, 0, len(results))
	for _, res := range results {
		ordered = append(ordered, res.(*worker.NormalizeResult))
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var mentions []*model.Mention
	for _, res := range ordered {
		if res.Err != nil {
			report.AddRejection(raws[res.Seq].RecordID, res.Err.Error())
			continue
		}
		for _, w := range res.Warnings {
			report.AddWarning(raws[res.Seq].RecordID, w.Attribute, w.Reason)
		}
		if res.Rejection != nil {
			report.AddRejection(res.Rejection.RecordID, res.Rejection.Constraint)
			continue
		}
		report.Normalized++
		mentions = append(mentions, res.Mention)
	}
	return mentions
}

func (p *Pipeline) lookupCache() cache.Cache {
	if !p.cfg.Cache.Enabled {
		return nil
	}
	return cache.NewMemoryCache(p.cfg.Cache.TTL, p.cfg.Cache.TTL)
}

// annotate runs the optional LLM review. Any failure here is logged
// and swallowed; the graph and export are already final.
func (p *Pipeline) annotate(ctx context.Context, entities []model.CanonicalEntity, report *model.RunReport) {
	annotator, err := llm.NewAnnotator(p.cfg.LLM)
	if err != nil {
		p.log.Warn("annotator disabled", zap.Error(err))
		return
	}
	if annotator == nil {
		return
	}
	if err := annotator.Annotate(ctx, entities, report); err != nil {
		p.log.Warn("annotation failed", zap.Error(err))
	}
}

func (p *Pipeline) writeReport(report *model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal report: %w", err)
	}
	path := filepath.Join(p.cfg.Output.Dir, p.cfg.Output.ReportJSON)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("pipeline: write report: %w", err)
	}
	return nil
}

// Summary renders the one-paragraph run outcome for the terminal
func Summary(report *model.RunReport) string {
	s := fmt.Sprintf("%d records read, %d normalized, %d rejected, %d warnings\n",
		report.RecordsRead, report.Normalized, report.Rejected, report.WarningCount)
	s += fmt.Sprintf("%d entities (%d merges, %d separator refusals)\n",
		report.Entities, report.MergedPairs, report.SeparatorHits)
	s += fmt.Sprintf("%d relations, %d unresolved claims\n",
		report.Relations, report.Unresolved)
	if report.Annotation != nil {
		s += fmt.Sprintf("llm review: %d clusters via %s/%s\n",
			report.Annotation.Clusters, report.Annotation.Provider, report.Annotation.Model)
	}
	return s
}
