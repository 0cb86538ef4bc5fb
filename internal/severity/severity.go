// Package severity converts model predictions into injury severity scores.
package severity

import (
	"fmt"
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/gyeh/icdiss/internal/model"
)

// maxRegions is the number of most severely injured body regions that
// contribute to ISS.
const maxRegions = 3

// criticalSeverity is the AIS severity that fixes ISS at its maximum.
const criticalSeverity = 6

// maxISS is the ISS of any case with a critical injury.
const maxISS = 75

// Lookup is the part of the code table needed to interpret predictions.
type Lookup interface {
	Severity(index int) (model.SeverityRecord, bool)
	SeverityToken(token string) (model.SeverityRecord, bool)
	ISS(index int) (int, bool)
	ISSToken(token string) (int, bool)
}

// Prediction is the raw model output for one case: category indices from a
// classifier or tokens from a translator.
type Prediction struct {
	Indices []int
	Tokens  []string
}

// Aggregate computes ISS, MAIS and per-chapter maximum severity from one
// case's severity records. Records that are not scorable are ignored; a
// case without any scorable record is Unscorable.
func Aggregate(records []model.SeverityRecord) model.Score {
	scorable := make([]model.SeverityRecord, 0, len(records))
	for _, r := range records {
		if r.Scorable() {
			scorable = append(scorable, r)
		}
	}
	if len(scorable) == 0 {
		return model.Unscorable
	}

	sort.Slice(scorable, func(i, j int) bool {
		a, b := scorable[i], scorable[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Region != b.Region {
			return a.Region > b.Region
		}
		return a.Chapter > b.Chapter
	})

	// Worst severity per region, most severe regions first.
	var worst []int
	seen := make(map[byte]bool, maxRegions)
	for _, r := range scorable {
		if seen[r.Region] {
			continue
		}
		seen[r.Region] = true
		worst = append(worst, digit(r.Severity))
		if len(worst) == maxRegions {
			break
		}
	}

	score := model.Score{Scorable: true, MAIS: worst[0]}
	if worst[0] == criticalSeverity {
		score.ISS = maxISS
	} else {
		for _, s := range worst {
			score.ISS += s * s
		}
	}

	for _, r := range scorable {
		slot, _ := model.ChapterSlot(r.Chapter)
		score.Chapters[slot] = max(score.Chapters[slot], digit(r.Severity))
	}
	return score
}

func digit(b byte) int {
	return int(b - '0')
}

// Score interprets one case's prediction for family.
func Score(t Lookup, family model.Family, p Prediction) (model.Score, error) {
	switch family {
	case model.FamilyDirectFFNN:
		if len(p.Indices) == 0 {
			return model.Unscorable, nil
		}
		iss, ok := t.ISS(p.Indices[0])
		if !ok {
			return model.Score{}, fmt.Errorf("predicted category %d has no ISS value", p.Indices[0])
		}
		return model.Score{Scorable: true, ISS: iss}, nil

	case model.FamilyDirectNMT:
		if len(p.Tokens) == 0 {
			return model.Unscorable, nil
		}
		iss, ok := t.ISSToken(p.Tokens[0])
		if !ok {
			return model.Unscorable, nil
		}
		return model.Score{Scorable: true, ISS: iss}, nil

	case model.FamilyIndirectFFNN:
		records := make([]model.SeverityRecord, 0, len(p.Indices))
		for _, idx := range p.Indices {
			rec, ok := t.Severity(idx)
			if !ok {
				return model.Score{}, fmt.Errorf("predicted category %d has no RCS code", idx)
			}
			records = append(records, rec)
		}
		return Aggregate(records), nil

	case model.FamilyIndirectNMT:
		records := make([]model.SeverityRecord, 0, len(p.Tokens))
		seen := make(map[string]bool, len(p.Tokens))
		for _, tok := range p.Tokens {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if rec, ok := t.SeverityToken(tok); ok {
				records = append(records, rec)
			}
		}
		return Aggregate(records), nil
	}
	_, err := model.ParseFamily(string(family))
	return model.Score{}, err
}

// ScoreAll scores every case in parallel. Result i belongs to prediction i.
// The first failing case, in case order, is reported.
func ScoreAll(t Lookup, family model.Family, preds []Prediction) ([]model.Score, error) {
	if _, err := model.ParseFamily(string(family)); err != nil {
		return nil, err
	}
	scores := make([]model.Score, len(preds))
	if len(preds) == 0 {
		return scores, nil
	}
	errs := make([]error, len(preds))
	parallel.Range(0, len(preds), 0, func(low, high int) {
		for i := low; i < high; i++ {
			scores[i], errs[i] = Score(t, family, preds[i])
		}
	})
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
	}
	return scores, nil
}

// Unscorable counts the cases that produced the NaN placeholder.
func Unscorable(scores []model.Score) int {
	n := 0
	for _, s := range scores {
		if !s.Scorable {
			n++
		}
	}
	return n
}
