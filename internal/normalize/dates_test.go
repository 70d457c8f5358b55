package normalize

import (
	"testing"

	"github.com/mbarbier/studium/internal/model"
)

func TestParseDate_Forms(t *testing.T) {
	cases := []struct {
		in        string
		start     int
		end       int
		qualifier model.DateQualifier
	}{
		{"1348", 1348, 1348, model.QualifierSimple},
		{"912", 912, 912, model.QualifierSimple},
		{"1348-03-21", 1348, 1348, model.QualifierSimple},
		{"1348-03", 1348, 1348, model.QualifierSimple},
		{"21/03/1348", 1348, 1348, model.QualifierSimple},
		{"before 1350", 1350, 1350, model.QualifierBefore},
		{"avant 1350", 1350, 1350, model.QualifierBefore},
		{"after 1402", 1402, 1402, model.QualifierAfter},
		{"apres 1402", 1402, 1402, model.QualifierAfter},
		{"ca. 1417", 1417, 1417, model.QualifierNear},
		{"vers 1417", 1417, 1417, model.QualifierNear},
		{"~1417", 1417, 1417, model.QualifierNear},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tc.in, err)
			continue
		}
		if got.Start != tc.start || got.End != tc.end {
			t.Errorf("ParseDate(%q) = %d-%d, want %d-%d", tc.in, got.Start, got.End, tc.start, tc.end)
		}
		if got.StartQualifier != tc.qualifier {
			t.Errorf("ParseDate(%q) qualifier = %s, want %s", tc.in, got.StartQualifier, tc.qualifier)
		}
	}
}

func TestParseDate_Interval(t *testing.T) {
	got, err := ParseDate("1348-1352")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Start != 1348 || got.End != 1352 {
		t.Errorf("interval = %d-%d, want 1348-1352", got.Start, got.End)
	}

	// Slash and en dash separators
	for _, in := range []string{"1348/1352", "1348–1352"} {
		if _, err := ParseDate(in); err != nil {
			t.Errorf("ParseDate(%q): %v", in, err)
		}
	}
}

func TestParseDate_Errors(t *testing.T) {
	for _, in := range []string{"", "once upon a time", "1352-1348", "12"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q): expected error", in)
		}
	}
}

func TestDateRange_Overlaps(t *testing.T) {
	y := func(start, end int) model.DateRange {
		return model.DateRange{Start: start, End: end, StartQualifier: model.QualifierSimple, EndQualifier: model.QualifierSimple}
	}

	if !y(1300, 1310).Overlaps(y(1310, 1320)) {
		t.Error("Expected touching ranges to overlap")
	}
	if y(1300, 1310).Overlaps(y(1320, 1330)) {
		t.Error("Expected disjoint ranges not to overlap")
	}

	// BEFORE opens the start by the qualifier slack
	before := model.DateRange{Start: 1305, End: 1305, StartQualifier: model.QualifierBefore, EndQualifier: model.QualifierSimple}
	if !before.Overlaps(y(1301, 1302)) {
		t.Error("Expected BEFORE to reach slightly earlier years")
	}

	// NEAR has smaller slack on both sides
	near := model.DateRange{Start: 1305, End: 1305, StartQualifier: model.QualifierNear, EndQualifier: model.QualifierNear}
	if !near.Overlaps(y(1307, 1307)) {
		t.Error("Expected NEAR to tolerate a near miss")
	}
	if near.Overlaps(y(1315, 1315)) {
		t.Error("Expected NEAR slack to stay bounded")
	}
}

func TestDateRange_Union(t *testing.T) {
	a := model.DateRange{Start: 1300, End: 1310, StartQualifier: model.QualifierSimple, EndQualifier: model.QualifierSimple}
	b := model.DateRange{Start: 1305, End: 1320, StartQualifier: model.QualifierSimple, EndQualifier: model.QualifierAfter}

	u := a.Union(b)
	if u.Start != 1300 || u.End != 1320 {
		t.Errorf("Union = %d-%d, want 1300-1320", u.Start, u.End)
	}
	if u.EndQualifier != model.QualifierAfter {
		t.Errorf("Expected the contributing endpoint's qualifier to survive, got %s", u.EndQualifier)
	}
}
