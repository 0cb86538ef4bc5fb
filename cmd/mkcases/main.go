// mkcases creates a demo code table set and a synthetic case file for
// trying icdiss end to end against a stub model server.
// Usage: go run ./cmd/mkcases --tables testdata/tables --out testdata/cases.csv --cases 500
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valyala/fastrand"

	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/model"
)

// region groups ICD-10 S-code blocks by AIS chapter and ISS body region.
type region struct {
	first, last int // S-code block range, inclusive
	chapter     byte
	issRegion   byte
}

var regions = []region{
	{0, 9, '1', '1'},   // head
	{10, 19, '3', '1'}, // neck
	{20, 29, '4', '4'}, // thorax
	{30, 39, '5', '5'}, // abdomen
	{40, 69, '7', '6'}, // upper extremity
	{70, 99, '8', '6'}, // lower extremity
}

const subcodes = 3 // trained subcodes per block; 3-9 stay untrained

func main() {
	tablesDir := flag.String("tables", "testdata/tables", "output directory for the code tables")
	out := flag.String("out", "testdata/cases.csv", "output case file")
	nCases := flag.Int("cases", 500, "number of cases")
	wide := flag.Bool("wide", false, "write case_per_row instead of code_per_row")
	untrained := flag.Int("untrained", 5, "percent of codes drawn from outside the vocabulary")
	checkOnly := flag.Bool("check", false, "only print stats of an existing table set, don't write")
	flag.Parse()

	if *checkOnly {
		check(*tablesDir)
		return
	}

	codes, rcs, iss := vocabulary()
	if err := codetable.Write(*tablesDir, codes, rcs, iss); err != nil {
		fmt.Fprintf(os.Stderr, "write tables: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d codes to %s\n", len(codes), *tablesDir)

	cases := synthesize(codes, *nCases, uint32(*untrained))
	if err := writeCases(*out, cases, *wide); err != nil {
		fmt.Fprintf(os.Stderr, "write cases: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, c := range cases {
		total += len(c.Codes)
	}
	fmt.Printf("Wrote %d cases (%d codes) to %s\n", len(cases), total, *out)
}

// vocabulary derives one output category per trained code. Every seventh
// code is not scorable by AIS.
func vocabulary() ([]codetable.CodeRow, []codetable.RCSRow, []codetable.ISSRow) {
	var (
		codes []codetable.CodeRow
		rcs   []codetable.RCSRow
		iss   []codetable.ISSRow
	)
	for _, r := range regions {
		for block := r.first; block <= r.last; block++ {
			for sub := 0; sub < subcodes; sub++ {
				idx := int64(len(codes))
				sev := 1 + (block*subcodes+sub)%6
				sevDigit := byte('0' + sev)
				if idx%7 == 6 {
					sevDigit = model.NotScorable
				}
				codes = append(codes, codetable.CodeRow{Code: fmt.Sprintf("S%02d.%dXXA", block, sub), Index: idx})
				rcs = append(rcs, codetable.RCSRow{Index: idx, RCS: string([]byte{sevDigit, '.', r.chapter, '.', r.issRegion})})

				score := sev * sev
				if sev == 6 {
					score = codetable.MaxISS
				}
				if sevDigit == model.NotScorable {
					score = 0
				}
				iss = append(iss, codetable.ISSRow{Index: idx, ISS: fmt.Sprint(score)})
			}
		}
	}
	return codes, rcs, iss
}

func synthesize(codes []codetable.CodeRow, n int, untrainedPct uint32) []model.Case {
	cases := make([]model.Case, n)
	for i := range cases {
		k := 1 + int(fastrand.Uint32n(4))
		c := model.Case{ID: fmt.Sprintf("case%05d", i)}
		for j := 0; j < k; j++ {
			if fastrand.Uint32n(100) < untrainedPct {
				block := fastrand.Uint32n(100)
				c.Codes = append(c.Codes, fmt.Sprintf("S%02d.%dXXA", block, subcodes+fastrand.Uint32n(10-subcodes)))
				continue
			}
			c.Codes = append(c.Codes, codes[fastrand.Uint32n(uint32(len(codes)))].Code)
		}
		// Non-trauma codes are dropped at ingestion.
		if fastrand.Uint32n(4) == 0 {
			c.Codes = append(c.Codes, "I10")
		}
		cases[i] = c
	}
	return cases
}

func writeCases(path string, cases []model.Case, wide bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, c := range cases {
		if wide {
			if err := w.Write(append([]string{c.ID}, c.Codes...)); err != nil {
				return err
			}
			continue
		}
		for _, code := range c.Codes {
			if err := w.Write([]string{c.ID, code}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func check(dir string) {
	for _, family := range []model.Family{model.FamilyIndirectFFNN, model.FamilyDirectFFNN} {
		t, err := codetable.Load(dir, family, model.SeverityFirst)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load %s tables: %v\n", family, err)
			os.Exit(1)
		}
		fmt.Printf("%-14s %d codes, first %s, last %s\n", family, t.Size(), t.Sorted()[0], t.Sorted()[t.Size()-1])
	}
	for _, name := range []string{codetable.CodesFile, codetable.RCSFile, codetable.ISSFile} {
		stat, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "stat: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  %-24s %d bytes\n", name, stat.Size())
	}
}
