package load

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/mbarbier/studium/internal/export"
)

// identRe vets labels and relationship types before they are spliced
// into Cypher; they come from the schema file, not from record data,
// but splicing is still splicing.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Loader pushes an exported graph into Neo4j in batches
type Loader struct {
	client    *Client
	batchSize int
	log       *zap.Logger
}

// NewLoader creates a loader; batchSize <= 0 falls back to 1000
func NewLoader(client *Client, batchSize int, log *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{client: client, batchSize: batchSize, log: log}
}

// Load reads the export tables in dir and merges them into the graph
// database. When wipe is set the database is cleared first. Nodes are
// MERGEd on id, so reloading the same export is idempotent.
func (l *Loader) Load(ctx context.Context, dir string, wipe bool) error {
	entities, err := export.ReadEntities(dir)
	if err != nil {
		return err
	}
	relations, err := export.ReadRelations(dir)
	if err != nil {
		return err
	}

	session := l.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: l.client.Database,
	})
	defer session.Close(ctx)

	if wipe {
		if err := l.wipe(ctx, session); err != nil {
			return err
		}
	}

	byLabel := groupEntities(entities)
	for _, label := range sortedKeys(byLabel) {
		if err := l.ensureConstraint(ctx, session, label); err != nil {
			return err
		}
		if err := l.loadNodes(ctx, session, label, byLabel[label]); err != nil {
			return err
		}
	}

	byType := groupRelations(relations)
	for _, relType := range sortedKeys(byType) {
		if err := l.loadRelations(ctx, session, relType, byType[relType]); err != nil {
			return err
		}
	}

	l.log.Info("load complete",
		zap.Int("entities", len(entities)),
		zap.Int("relations", len(relations)))
	return nil
}

func (l *Loader) wipe(ctx context.Context, session neo4j.SessionWithContext) error {
	l.log.Warn("wiping database before load")
	res, err := session.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
	if err != nil {
		return fmt.Errorf("load: wipe: %w", err)
	}
	_, err = res.Consume(ctx)
	return err
}

func (l *Loader) ensureConstraint(ctx context.Context, session neo4j.SessionWithContext, label string) error {
	query := fmt.Sprintf(
		`CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE`,
		strings.ToLower(label), label)
	res, err := session.Run(ctx, query, nil)
	if err != nil {
		// Restricted users may not hold schema privileges
		l.log.Warn("constraint creation failed (continuing)",
			zap.String("label", label), zap.Error(err))
		return nil
	}
	_, _ = res.Consume(ctx)
	return nil
}

func (l *Loader) loadNodes(ctx context.Context, session neo4j.SessionWithContext, label string, rows []export.EntityRow) error {
	query := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {id: row.id})
SET n.name = row.name,
    n.confidence = row.confidence,
    n.uncertain = row.uncertain,
    n.provenance_ids = row.provenance_ids,
    n += row.attributes
`, label)

	for start := 0; start < len(rows); start += l.batchSize {
		end := min(start+l.batchSize, len(rows))
		batch := make([]map[string]any, 0, end-start)
		for _, row := range rows[start:end] {
			attrs := make(map[string]any, len(row.Attributes))
			for k, v := range row.Attributes {
				attrs[k] = v
			}
			batch = append(batch, map[string]any{
				"id":             row.ID,
				"name":           row.Name,
				"confidence":     row.Confidence,
				"uncertain":      row.Uncertain,
				"provenance_ids": row.ProvenanceIDs,
				"attributes":     attrs,
			})
		}
		if err := l.runBatch(ctx, session, query, map[string]any{"rows": batch}); err != nil {
			return fmt.Errorf("load: nodes %s: %w", label, err)
		}
		l.log.Debug("node batch loaded",
			zap.String("label", label), zap.Int("rows", len(batch)))
	}
	return nil
}

func (l *Loader) loadRelations(ctx context.Context, session neo4j.SessionWithContext, relType string, rows []export.RelationRow) error {
	query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a {id: row.source_id})
MATCH (b {id: row.target_id})
MERGE (a)-[r:%s]->(b)
SET r.confidence = row.confidence,
    r.provenance_ids = row.provenance_ids
`, relType)

	for start := 0; start < len(rows); start += l.batchSize {
		end := min(start+l.batchSize, len(rows))
		batch := make([]map[string]any, 0, end-start)
		for _, row := range rows[start:end] {
			batch = append(batch, map[string]any{
				"source_id":      row.SourceID,
				"target_id":      row.TargetID,
				"confidence":     row.Confidence,
				"provenance_ids": row.ProvenanceIDs,
			})
		}
		if err := l.runBatch(ctx, session, query, map[string]any{"rows": batch}); err != nil {
			return fmt.Errorf("load: relations %s: %w", relType, err)
		}
		l.log.Debug("relation batch loaded",
			zap.String("type", relType), zap.Int("rows", len(batch)))
	}
	return nil
}

func (l *Loader) runBatch(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	return err
}

func groupEntities(rows []export.EntityRow) map[string][]export.EntityRow {
	out := make(map[string][]export.EntityRow)
	for _, row := range rows {
		out[nodeLabel(row.Type)] = append(out[nodeLabel(row.Type)], row)
	}
	return out
}

func groupRelations(rows []export.RelationRow) map[string][]export.RelationRow {
	out := make(map[string][]export.RelationRow)
	for _, row := range rows {
		out[relTypeName(row.Type)] = append(out[relTypeName(row.Type)], row)
	}
	return out
}

// nodeLabel turns a schema type name into a safe Neo4j label
func nodeLabel(typeName string) string {
	cleaned := sanitizeIdent(typeName)
	if cleaned == "" {
		return "Entity"
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

// relTypeName turns a schema relation name into a safe relationship type
func relTypeName(name string) string {
	cleaned := sanitizeIdent(name)
	if cleaned == "" {
		return "RELATED_TO"
	}
	return strings.ToUpper(cleaned)
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if !identRe.MatchString(out) {
		return ""
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
