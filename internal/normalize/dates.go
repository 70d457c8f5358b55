package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mbarbier/studium/internal/model"
)

// Date coercion is deterministic: formats are tried in a fixed priority
// order and the first success wins, so reruns always coerce identically.

var qualifierPrefixes = []struct {
	prefix    string
	qualifier model.DateQualifier
}{
	{"before ", model.QualifierBefore},
	{"avant ", model.QualifierBefore},
	{"after ", model.QualifierAfter},
	{"apres ", model.QualifierAfter},
	{"ca. ", model.QualifierNear},
	{"ca ", model.QualifierNear},
	{"c. ", model.QualifierNear},
	{"vers ", model.QualifierNear},
	{"~", model.QualifierNear},
}

// Calendar layouts tried before the year-only forms
var calendarLayouts = []string{
	"2006-01-02",
	"2006-01",
	"02/01/2006",
}

var (
	yearRe     = regexp.MustCompile(`^\d{3,4}$`)
	intervalRe = regexp.MustCompile(`^(\d{3,4})\s*[-–—/]\s*(\d{3,4})$`)
)

// ParseDate coerces a raw attribute value to a year-granularity range.
// Accepts calendar dates, bare years, year intervals ("1348-1352") and
// qualified years ("before 1350", "ca. 1417").
func ParseDate(raw string) (*model.DateRange, error) {
	v := strings.TrimSpace(strings.ToLower(raw))
	if v == "" {
		return nil, fmt.Errorf("empty date")
	}

	qualifier := model.QualifierSimple
	for _, q := range qualifierPrefixes {
		if strings.HasPrefix(v, q.prefix) {
			qualifier = q.qualifier
			v = strings.TrimSpace(strings.TrimPrefix(v, q.prefix))
			break
		}
	}

	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			y := t.Year()
			return &model.DateRange{
				Start:          y,
				End:            y,
				StartQualifier: qualifier,
				EndQualifier:   qualifier,
			}, nil
		}
	}

	if yearRe.MatchString(v) {
		y, _ := strconv.Atoi(v)
		return &model.DateRange{
			Start:          y,
			End:            y,
			StartQualifier: qualifier,
			EndQualifier:   qualifier,
		}, nil
	}

	if m := intervalRe.FindStringSubmatch(v); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if end < start {
			return nil, fmt.Errorf("interval %q ends before it starts", raw)
		}
		return &model.DateRange{
			Start:          start,
			End:            end,
			StartQualifier: qualifier,
			EndQualifier:   model.QualifierSimple,
		}, nil
	}

	return nil, fmt.Errorf("unrecognized date %q", raw)
}
