// Package calibrate sweeps the merge threshold over a labeled pair
// corpus and reports precision, recall and F1 per grid point. It is how
// the default thresholds were chosen and how they get revisited when
// the corpus grows.
package calibrate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/normalize"
	"github.com/mbarbier/studium/internal/resolve"
	"github.com/mbarbier/studium/internal/schema"
)

// LabeledPair is one human-labeled record pair
type LabeledPair struct {
	A     model.RawFactoid `json:"a"`
	B     model.RawFactoid `json:"b"`
	Match bool             `json:"match"`
}

// GridPoint is the confusion outcome at one merge threshold
type GridPoint struct {
	Threshold float64 `json:"threshold"`

	TruePositives  int `json:"tp"`
	FalsePositives int `json:"fp"`
	FalseNegatives int `json:"fn"`
	TrueNegatives  int `json:"tn"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Report is the full sweep outcome. Best is the point with the highest
// F1; ties go to the higher threshold since precision is cheaper to
// repair than wrong merges.
type Report struct {
	Pairs   int         `json:"pairs"`
	Skipped int         `json:"skipped"` // Pairs whose records failed normalization
	Points  []GridPoint `json:"points"`
	Best    GridPoint   `json:"best"`
}

// ReadPairs reads one labeled pair per JSONL line
func ReadPairs(path string) ([]LabeledPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("calibrate: open pairs: %w", err)
	}
	defer f.Close()

	var pairs []LabeledPair
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var pair LabeledPair
		if err := json.Unmarshal(scanner.Bytes(), &pair); err != nil {
			return nil, fmt.Errorf("calibrate: line %d: %w", line, err)
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("calibrate: read pairs: %w", err)
	}
	return pairs, nil
}

// DefaultGrid returns the standard sweep of merge thresholds
func DefaultGrid() []float64 {
	return []float64{0.50, 0.55, 0.60, 0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95}
}

// Sweep scores every pair once and evaluates each threshold against
// the labels. The conflict threshold and weights are held fixed at the
// given configuration.
func Sweep(registry *schema.Registry, cfg model.ResolverConfig, pairs []LabeledPair, grid []float64) (*Report, error) {
	if len(grid) == 0 {
		grid = DefaultGrid()
	}

	normalizer := normalize.NewNormalizer(registry)

	type scored struct {
		score float64
		match bool
	}
	var scores []scored
	skipped := 0
	for _, pair := range pairs {
		ma, _, rejA := normalizer.Normalize(pair.A)
		mb, _, rejB := normalizer.Normalize(pair.B)
		if rejA != nil || rejB != nil {
			skipped++
			continue
		}
		if !registry.IsAssignable(ma.Type, mb.Type) && !registry.IsAssignable(mb.Type, ma.Type) {
			// Incompatible types never merge regardless of threshold
			scores = append(scores, scored{score: 0, match: pair.Match})
			continue
		}
		scores = append(scores, scored{
			score: resolve.ScorePair(cfg, ma, mb).Total,
			match: pair.Match,
		})
	}

	report := &Report{Pairs: len(pairs), Skipped: skipped}
	for _, threshold := range grid {
		point := GridPoint{Threshold: threshold}
		for _, s := range scores {
			predicted := s.score >= threshold
			switch {
			case predicted && s.match:
				point.TruePositives++
			case predicted && !s.match:
				point.FalsePositives++
			case !predicted && s.match:
				point.FalseNegatives++
			default:
				point.TrueNegatives++
			}
		}
		point.Precision = ratio(point.TruePositives, point.TruePositives+point.FalsePositives)
		point.Recall = ratio(point.TruePositives, point.TruePositives+point.FalseNegatives)
		if point.Precision+point.Recall > 0 {
			point.F1 = 2 * point.Precision * point.Recall / (point.Precision + point.Recall)
		}
		report.Points = append(report.Points, point)

		if point.F1 > report.Best.F1 || (point.F1 == report.Best.F1 && point.Threshold > report.Best.Threshold) {
			report.Best = point
		}
	}
	return report, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
