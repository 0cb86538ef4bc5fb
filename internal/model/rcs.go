package model

import "fmt"

// NotScorable is the severity digit for injuries that AIS cannot score.
// Records carrying it never take part in severity calculations.
const NotScorable = '9'

// RCSLength is the fixed length of an RCS code, e.g. "4.1.3".
const RCSLength = 5

// SeverityRecord is one decoded RCS code.
type SeverityRecord struct {
	Severity byte // '1'-'6', or NotScorable
	Chapter  byte // '0'-'9'
	Region   byte // ISS body region
}

// Scorable reports whether the record counts towards ISS/MAIS/chapter maxima.
func (r SeverityRecord) Scorable() bool {
	return r.Severity != NotScorable
}

// RCSLayout gives the character positions of the severity, chapter and
// region digits within an RCS code.
type RCSLayout struct {
	Name     string
	Severity int
	Chapter  int
	Region   int
}

var (
	// SeverityFirst reads "S.C.R": severity at 0, chapter at 2, region at 4.
	SeverityFirst = RCSLayout{Name: "severity_first", Severity: 0, Chapter: 2, Region: 4}
	// RegionFirst reads "R.C.S": region at 0, chapter at 2, severity at 4.
	RegionFirst = RCSLayout{Name: "region_first", Severity: 4, Chapter: 2, Region: 0}
)

// ParseRCSLayout resolves a layout name. An empty name selects SeverityFirst.
func ParseRCSLayout(name string) (RCSLayout, error) {
	switch name {
	case "", SeverityFirst.Name:
		return SeverityFirst, nil
	case RegionFirst.Name:
		return RegionFirst, nil
	}
	return RCSLayout{}, fmt.Errorf("%w %q: can only accept %q or %q", ErrUnknownRCSLayout, name, SeverityFirst.Name, RegionFirst.Name)
}

// Decode splits an RCS code into its severity record.
func (l RCSLayout) Decode(rcs string) (SeverityRecord, error) {
	if len(rcs) != RCSLength {
		return SeverityRecord{}, fmt.Errorf("rcs code %q: want %d characters, got %d", rcs, RCSLength, len(rcs))
	}
	rec := SeverityRecord{
		Severity: rcs[l.Severity],
		Chapter:  rcs[l.Chapter],
		Region:   rcs[l.Region],
	}
	if !(rec.Severity >= '1' && rec.Severity <= '6') && rec.Severity != NotScorable {
		return SeverityRecord{}, fmt.Errorf("rcs code %q: severity %q is not 1-6 or 9", rcs, rec.Severity)
	}
	if _, ok := ChapterSlot(rec.Chapter); !ok {
		return SeverityRecord{}, fmt.Errorf("rcs code %q: chapter %q is not a digit", rcs, rec.Chapter)
	}
	if rec.Region < '0' || rec.Region > '9' {
		return SeverityRecord{}, fmt.Errorf("rcs code %q: region %q is not a digit", rcs, rec.Region)
	}
	return rec, nil
}
