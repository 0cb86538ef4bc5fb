package model

// Chapter is one of the ten anatomical AIS chapters reported by the
// per-chapter maximum severity output.
type Chapter struct {
	Digit  byte   // chapter digit as it appears in an RCS code, e.g. '4'
	Column string // output/result column name, e.g. "ch4_thorax"
}

// AllChapters lists the chapters in output column order. Chapter 0 is last.
var AllChapters = []Chapter{
	{Digit: '1', Column: "ch1_head"},
	{Digit: '2', Column: "ch2_face"},
	{Digit: '3', Column: "ch3_neck"},
	{Digit: '4', Column: "ch4_thorax"},
	{Digit: '5', Column: "ch5_abdomen"},
	{Digit: '6', Column: "ch6_spine"},
	{Digit: '7', Column: "ch7_upper_extremity"},
	{Digit: '8', Column: "ch8_lower_extremity"},
	{Digit: '9', Column: "ch9_external"},
	{Digit: '0', Column: "ch0_miscellaneous"},
}

// ChapterColumns returns just the column names for all chapters.
func ChapterColumns() []string {
	cols := make([]string, len(AllChapters))
	for i, ch := range AllChapters {
		cols[i] = ch.Column
	}
	return cols
}

// ChapterSlot returns the position of a chapter digit within AllChapters,
// or ok=false for a byte that is not a chapter digit.
func ChapterSlot(digit byte) (int, bool) {
	switch {
	case digit == '0':
		return len(AllChapters) - 1, true
	case digit >= '1' && digit <= '9':
		return int(digit - '1'), true
	}
	return 0, false
}
