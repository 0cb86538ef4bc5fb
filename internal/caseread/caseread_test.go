package caseread

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gyeh/icdiss/internal/model"
)

func TestRead_Long(t *testing.T) {
	in := "p2,S71.019A\np1,s06.0x0a\np2,I10\np1,T07\np2,S71.019A\n"
	cases, err := Read(strings.NewReader(in), model.LayoutCodePerRow)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []model.Case{
		{ID: "p1", Codes: []string{"S06.0X0A", "T07"}},
		{ID: "p2", Codes: []string{"S71.019A"}},
	}
	if !reflect.DeepEqual(cases, want) {
		t.Errorf("cases = %+v, want %+v", cases, want)
	}
}

func TestRead_LongNoTraumaCodes(t *testing.T) {
	in := "p1,S71.019A\np2,I10\np2,E11.9\n"
	_, err := Read(strings.NewReader(in), model.LayoutCodePerRow)
	if !errors.Is(err, ErrNoTraumaCodes) {
		t.Fatalf("expected ErrNoTraumaCodes, got %v", err)
	}
	if !strings.Contains(err.Error(), `"p2"`) {
		t.Errorf("error should name the case: %v", err)
	}
}

func TestRead_LongWrongFieldCount(t *testing.T) {
	in := "p1,S71.019A,T07\n"
	_, err := Read(strings.NewReader(in), model.LayoutCodePerRow)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestRead_Wide(t *testing.T) {
	in := "b,S71.019A,I10, t07\na,S06.0X0A,,S06.0X0A\n"
	cases, err := Read(strings.NewReader(in), model.LayoutCasePerRow)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []model.Case{
		{ID: "b", Codes: []string{"S71.019A", "T07"}},
		{ID: "a", Codes: []string{"S06.0X0A"}},
	}
	if !reflect.DeepEqual(cases, want) {
		t.Errorf("cases = %+v, want %+v", cases, want)
	}
	if ids := IDs(cases); !reflect.DeepEqual(ids, []string{"b", "a"}) {
		t.Errorf("IDs = %v", ids)
	}
}

func TestRead_WideDuplicateID(t *testing.T) {
	// A long file read as wide repeats identifiers.
	in := "p1,S71.019A\np1,T07\n"
	_, err := Read(strings.NewReader(in), model.LayoutCasePerRow)
	if !errors.Is(err, ErrDuplicateCase) {
		t.Fatalf("expected ErrDuplicateCase, got %v", err)
	}
}

func TestRead_WideNoTraumaCodes(t *testing.T) {
	in := "p1,S71.019A\np2,I10,E11.9\n"
	_, err := Read(strings.NewReader(in), model.LayoutCasePerRow)
	if !errors.Is(err, ErrNoTraumaCodes) {
		t.Fatalf("expected ErrNoTraumaCodes, got %v", err)
	}
}

func TestRead_UnknownLayout(t *testing.T) {
	_, err := Read(strings.NewReader("p1,S00\n"), model.Layout("tall"))
	if !errors.Is(err, model.ErrUnknownLayout) {
		t.Fatalf("expected ErrUnknownLayout, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.csv")
	os.WriteFile(path, []byte("p1,S71.019A\n"), 0644)

	cases, err := ReadFile(path, model.LayoutCasePerRow)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(cases) != 1 || cases[0].ID != "p1" {
		t.Errorf("unexpected cases: %+v", cases)
	}
	if sets := CodeSets(cases); len(sets) != 1 || sets[0][0] != "S71.019A" {
		t.Errorf("CodeSets = %v", sets)
	}
}
