// Package export serializes the assembled graph as two CSV tables in a
// stable, re-import-safe layout: fixed column order, entities sorted by
// id, relations by (source, target, type). Identical input produces
// byte-identical files, so regression tests can diff the output.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mbarbier/studium/internal/model"
)

const (
	EntitiesFile  = "entities.csv"
	RelationsFile = "relations.csv"
)

var entityHeader = []string{"id", "type", "name", "attributes", "confidence", "uncertain", "provenance_ids"}
var relationHeader = []string{"source_id", "target_id", "type", "confidence", "provenance_ids"}

// Serializer writes a graph into a target directory
type Serializer struct {
	dir string
}

// NewSerializer creates a serializer targeting dir (created on demand)
func NewSerializer(dir string) *Serializer {
	return &Serializer{dir: dir}
}

// Write serializes the graph and returns the row counts written
func (s *Serializer) Write(graph *model.Graph) (int, int, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("export: create %s: %w", s.dir, err)
	}
	graph.Sort()

	if err := s.writeEntities(graph.Entities); err != nil {
		return 0, 0, err
	}
	if err := s.writeRelations(graph.Relations); err != nil {
		return 0, 0, err
	}
	return len(graph.Entities), len(graph.Relations), nil
}

func (s *Serializer) writeEntities(entities []model.CanonicalEntity) error {
	return s.writeTable(EntitiesFile, entityHeader, len(entities), func(i int) []string {
		e := entities[i]
		return []string{
			e.ID,
			e.Type,
			e.Name,
			encodeAttributes(e.Attributes),
			formatConfidence(e.Confidence),
			strconv.FormatBool(e.Uncertain),
			strings.Join(e.Mentions, ";"),
		}
	})
}

func (s *Serializer) writeRelations(relations []model.Relation) error {
	return s.writeTable(RelationsFile, relationHeader, len(relations), func(i int) []string {
		r := relations[i]
		provs := make([]string, 0, len(r.Provenance))
		for _, p := range r.Provenance {
			provs = append(provs, p.RecordID)
		}
		sort.Strings(provs)
		return []string{
			r.SourceID,
			r.TargetID,
			r.Type,
			formatConfidence(r.Confidence),
			strings.Join(provs, ";"),
		}
	})
}

func (s *Serializer) writeTable(name string, header []string, rows int, row func(int) []string) (err error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("export: close %s: %w", path, closeErr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush %s: %w", path, err)
	}
	return nil
}

// encodeAttributes renders the attribute map as one JSON object cell,
// so values survive any punctuation the cleaner lets through. Dates
// render as year ranges; everything else as its canonical text. The
// marshaller sorts keys, keeping reruns byte-identical.
func encodeAttributes(attrs map[string]model.ResolvedAttr) string {
	if len(attrs) == 0 {
		return ""
	}
	m := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		v := attr.Value
		text := v.Text
		if v.Kind == model.KindDate && v.Date != nil {
			text = v.Date.String()
		}
		m[name] = text
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 4, 64)
}

// EntityRow is one re-imported entity record
type EntityRow struct {
	ID            string
	Type          string
	Name          string
	Attributes    map[string]string
	Confidence    float64
	Uncertain     bool
	ProvenanceIDs []string
}

// RelationRow is one re-imported relation record
type RelationRow struct {
	SourceID      string
	TargetID      string
	Type          string
	Confidence    float64
	ProvenanceIDs []string
}

// ReadEntities reads an exported entities table back
func ReadEntities(dir string) ([]EntityRow, error) {
	records, err := readTable(filepath.Join(dir, EntitiesFile), entityHeader)
	if err != nil {
		return nil, err
	}
	rows := make([]EntityRow, 0, len(records))
	for _, rec := range records {
		conf, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("export: entity %s: bad confidence %q", rec[0], rec[4])
		}
		attrs, err := decodeAttributes(rec[3])
		if err != nil {
			return nil, fmt.Errorf("export: entity %s: %w", rec[0], err)
		}
		rows = append(rows, EntityRow{
			ID:            rec[0],
			Type:          rec[1],
			Name:          rec[2],
			Attributes:    attrs,
			Confidence:    conf,
			Uncertain:     rec[5] == "true",
			ProvenanceIDs: splitList(rec[6]),
		})
	}
	return rows, nil
}

// ReadRelations reads an exported relations table back
func ReadRelations(dir string) ([]RelationRow, error) {
	records, err := readTable(filepath.Join(dir, RelationsFile), relationHeader)
	if err != nil {
		return nil, err
	}
	rows := make([]RelationRow, 0, len(records))
	for _, rec := range records {
		conf, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("export: relation %s->%s: bad confidence %q", rec[0], rec[1], rec[3])
		}
		rows = append(rows, RelationRow{
			SourceID:      rec[0],
			TargetID:      rec[1],
			Type:          rec[2],
			Confidence:    conf,
			ProvenanceIDs: splitList(rec[4]),
		})
	}
	return rows, nil
}

func readTable(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	if len(records) == 0 || strings.Join(records[0], ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("export: %s: unexpected header", path)
	}
	return records[1:], nil
}

func decodeAttributes(encoded string) (map[string]string, error) {
	out := make(map[string]string)
	if encoded == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil, fmt.Errorf("bad attributes cell: %w", err)
	}
	return out, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}
