package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/config"
	"github.com/gyeh/icdiss/internal/convert"
	"github.com/gyeh/icdiss/internal/encode"
	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/normalize"
	"github.com/gyeh/icdiss/internal/predict"
	"github.com/gyeh/icdiss/internal/resolve"
)

// Category i of the fixture vocabulary predicts output category i.
var fixtureCodes = []codetable.CodeRow{
	{Code: "S06.0X0A", Index: 0},
	{Code: "S71.019A", Index: 1},
	{Code: "S72.001A", Index: 2},
	{Code: "T07", Index: 3},
	{Code: "S22.31XA", Index: 4},
}

var fixtureRCS = []codetable.RCSRow{
	{Index: 0, RCS: "4.1.1"},
	{Index: 1, RCS: "2.8.6"},
	{Index: 2, RCS: "3.8.6"},
	{Index: 3, RCS: "9.9.6"},
	{Index: 4, RCS: "3.4.4"},
}

var fixtureISS = []codetable.ISSRow{
	{Index: 0, ISS: "16"},
	{Index: 1, ISS: "4"},
	{Index: 2, ISS: "9"},
	{Index: 3, ISS: "0"},
	{Index: 4, ISS: "9"},
}

// p4's code is untrained; its closest trained code is S06.0X0A.
const fixtureInput = `p2,S72.001A
p1,S06.0X0A
p2,I10
p3,T07
p1,S71.019A
p4,S06.0X1A
`

func setupFixture(t *testing.T) (input, tables string) {
	t.Helper()
	dir := t.TempDir()
	tables = filepath.Join(dir, "tables")
	if err := codetable.Write(tables, fixtureCodes, fixtureRCS, fixtureISS); err != nil {
		t.Fatalf("write tables: %v", err)
	}
	input = filepath.Join(dir, "cases.csv")
	if err := os.WriteFile(input, []byte(fixtureInput), 0644); err != nil {
		t.Fatal(err)
	}
	return input, tables
}

// echoClassifier predicts, for each row, the categories set in it.
// direct keeps only the first.
func echoClassifier(direct bool) predict.Classifier {
	return predict.ClassifierFunc(func(ctx context.Context, b encode.Batch) ([][]int, error) {
		rows := make([][]int, b.Rows())
		for i := range rows {
			rows[i] = []int{}
		}
		for _, e := range b.Entries() {
			if direct && len(rows[e[0]]) > 0 {
				continue
			}
			rows[e[0]] = append(rows[e[0]], e[1])
		}
		return rows, nil
	})
}

// mapTranslator translates each token through m, dropping unmapped ones.
func mapTranslator(m map[string]string) predict.Translator {
	return predict.TranslatorFunc(func(ctx context.Context, tokens []string) ([]string, error) {
		out := []string{"<unk>"}
		for _, tok := range tokens {
			if v, ok := m[tok]; ok {
				out = append(out, v)
			}
		}
		return out, nil
	})
}

func params(t *testing.T, family model.Family, policy model.Policy, outputs model.Outputs) convert.Params {
	t.Helper()
	input, tables := setupFixture(t)
	return convert.Params{
		InputPath: input,
		TablesDir: tables,
		Options: config.Options{
			Layout:    model.LayoutCodePerRow,
			Policy:    policy,
			Family:    family,
			RCSLayout: model.SeverityFirst,
			Outputs:   outputs.For(family),
		},
	}
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestRun_IndirectFFNN(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true, MAIS: true})
	p.Classifier = echoClassifier(false)

	summary, err := convert.Run(context.Background(), zerolog.Nop(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantPath := filepath.Join(filepath.Dir(p.InputPath), "cases.indirect_FFNN_iss_mais.csv")
	if summary.OutputPath != wantPath {
		t.Errorf("OutputPath = %q, want %q", summary.OutputPath, wantPath)
	}
	want := "patient_id,iss,mais\np1,20,4\np2,9,3\np3,NaN,NaN\np4,16,4\n"
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}

	if summary.Cases != 4 || summary.Batches != 1 || summary.Substitutions != 1 || summary.Unscorable != 1 {
		t.Errorf("summary = %+v", summary)
	}
	sha, _ := normalize.FileHash(p.InputPath)
	if summary.InputSHA256 != sha {
		t.Errorf("InputSHA256 = %q", summary.InputSHA256)
	}
	if summary.RowsSunk != 0 {
		t.Errorf("RowsSunk = %d without a database", summary.RowsSunk)
	}
}

func TestRun_IndirectFFNNChapterMaxima(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ChapterMax: true})
	p.Classifier = echoClassifier(false)

	summary, err := convert.Run(context.Background(), zerolog.Nop(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "patient_id,ch1_head,ch2_face,ch3_neck,ch4_thorax,ch5_abdomen,ch6_spine,ch7_upper_extremity,ch8_lower_extremity,ch9_external,ch0_miscellaneous\n" +
		"p1,4,0,0,0,0,0,0,2,0,0\n" +
		"p2,0,0,0,0,0,0,0,3,0,0\n" +
		"p3,NaN,NaN,NaN,NaN,NaN,NaN,NaN,NaN,NaN,NaN\n" +
		"p4,4,0,0,0,0,0,0,0,0,0\n"
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestRun_DirectFFNN(t *testing.T) {
	p := params(t, model.FamilyDirectFFNN, model.PolicyClosest, model.Outputs{MAIS: true, ChapterMax: true})
	p.Classifier = echoClassifier(true)

	summary, err := convert.Run(context.Background(), zerolog.Nop(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(summary.OutputPath) != "cases.direct_FFNN_iss.csv" {
		t.Errorf("OutputPath = %q", summary.OutputPath)
	}
	want := "patient_id,iss\np1,16\np2,9\np3,0\np4,16\n"
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestRun_DirectNMT(t *testing.T) {
	p := params(t, model.FamilyDirectNMT, model.PolicyClosest, model.Outputs{ISS: true})
	// The first hypothesis token must be an ISS value; "<unk>" never is.
	p.Translator = predict.TranslatorFunc(func(ctx context.Context, tokens []string) ([]string, error) {
		if tokens[0] == "DT07" {
			return []string{"<unk>"}, nil
		}
		return []string{"9", "16"}, nil
	})

	summary, err := convert.Run(context.Background(), zerolog.Nop(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "patient_id,iss\np1,9\np2,9\np3,NaN\np4,9\n"
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
	if summary.Batches != 0 {
		t.Errorf("translator run reported %d batches", summary.Batches)
	}
}

func TestRun_IndirectNMT(t *testing.T) {
	p := params(t, model.FamilyIndirectNMT, model.PolicyClosest, model.Outputs{ISS: true, MAIS: true})
	p.Translator = mapTranslator(map[string]string{
		"DS060X0A": "4.1.1",
		"DS71019A": "2.8.6",
		"DS72001A": "3.8.6",
	})

	summary, err := convert.Run(context.Background(), zerolog.Nop(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "patient_id,iss,mais\np1,20,4\np2,9,3\np3,NaN,NaN\np4,16,4\n"
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestRun_FailPolicyAborts(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyFail, model.Outputs{ISS: true})
	p.Classifier = echoClassifier(false)

	_, err := convert.Run(context.Background(), zerolog.Nop(), p)
	var pe *convert.PipelineError
	if !errors.As(err, &pe) || pe.Phase != convert.PhaseResolve {
		t.Fatalf("expected resolve PipelineError, got %v", err)
	}
	var unknown *resolve.UnknownCodesError
	if !errors.As(err, &unknown) || len(unknown.Codes) != 1 || unknown.Codes[0] != "S06.0X1A" {
		t.Errorf("expected UnknownCodesError for S06.0X1A, got %v", err)
	}
	assertNoOutput(t, p)
}

func TestRun_IgnorePolicyAbortsOnEmptiedCase(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyIgnore, model.Outputs{ISS: true})
	p.Classifier = echoClassifier(false)

	_, err := convert.Run(context.Background(), zerolog.Nop(), p)
	var emptied *resolve.EmptiedCasesError
	if !errors.As(err, &emptied) || len(emptied.CaseIDs) != 1 || emptied.CaseIDs[0] != "p4" {
		t.Fatalf("expected EmptiedCasesError for p4, got %v", err)
	}
	assertNoOutput(t, p)
}

func TestRun_PredictorErrorAborts(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true})
	boom := errors.New("model not loaded")
	p.Classifier = predict.ClassifierFunc(func(ctx context.Context, b encode.Batch) ([][]int, error) {
		return nil, boom
	})

	_, err := convert.Run(context.Background(), zerolog.Nop(), p)
	var pe *convert.PipelineError
	if !errors.As(err, &pe) || pe.Phase != convert.PhasePredict || !errors.Is(err, boom) {
		t.Fatalf("expected predict PipelineError, got %v", err)
	}
	assertNoOutput(t, p)
}

func TestRun_ShortPrediction(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true})
	p.Classifier = predict.ClassifierFunc(func(ctx context.Context, b encode.Batch) ([][]int, error) {
		return [][]int{{0}}, nil
	})

	_, err := convert.Run(context.Background(), zerolog.Nop(), p)
	if !errors.Is(err, predict.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	p := params(t, model.FamilyIndirectNMT, model.PolicyClosest, model.Outputs{ISS: true})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p.Translator = predict.TranslatorFunc(func(ctx context.Context, tokens []string) ([]string, error) {
		calls++
		cancel()
		return []string{"4.1.1"}, nil
	})

	_, err := convert.Run(ctx, zerolog.Nop(), p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("translator called %d times after cancellation", calls)
	}
	assertNoOutput(t, p)
}

func TestRun_MissingPredictor(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true})
	p.Translator = mapTranslator(nil)

	if _, err := convert.Run(context.Background(), zerolog.Nop(), p); err == nil {
		t.Fatal("expected error when the classifier is missing")
	}
}

func TestRun_IngestError(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true})
	p.Classifier = echoClassifier(false)
	os.WriteFile(p.InputPath, []byte("p1,S00.0\np2,I10\n"), 0644)

	_, err := convert.Run(context.Background(), zerolog.Nop(), p)
	var pe *convert.PipelineError
	if !errors.As(err, &pe) || pe.Phase != convert.PhaseIngest {
		t.Fatalf("expected ingest PipelineError, got %v", err)
	}
}

func TestRun_MissingTables(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true})
	p.Classifier = echoClassifier(false)
	p.TablesDir = t.TempDir()

	_, err := convert.Run(context.Background(), zerolog.Nop(), p)
	var pe *convert.PipelineError
	if !errors.As(err, &pe) || pe.Phase != convert.PhasePreflight || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected preflight PipelineError, got %v", err)
	}
}

func assertNoOutput(t *testing.T, p convert.Params) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(p.InputPath))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "cases.csv" && e.Name() != "tables" {
			t.Errorf("unexpected file %q after a failed run", e.Name())
		}
	}
}

func TestPlan(t *testing.T) {
	p := params(t, model.FamilyIndirectFFNN, model.PolicyClosest, model.Outputs{ISS: true})

	report, err := convert.Plan(zerolog.Nop(), p.InputPath, p.TablesDir, p.Options)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if report.Cases != 4 || report.Batches != 1 || report.Vocabulary != 5 || report.Codes != 5 {
		t.Errorf("report = %+v", report)
	}
	if report.Outcome.Substitutions["S06.0X1A"] != "S06.0X0A" {
		t.Errorf("Substitutions = %v", report.Outcome.Substitutions)
	}
	if report.Abort != nil {
		t.Errorf("Abort = %v", report.Abort)
	}
	assertNoOutput(t, p)
}

func TestPlan_ReportsAbort(t *testing.T) {
	p := params(t, model.FamilyIndirectNMT, model.PolicyIgnore, model.Outputs{ISS: true})

	report, err := convert.Plan(zerolog.Nop(), p.InputPath, p.TablesDir, p.Options)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(report.EmptiedIDs) != 1 || report.EmptiedIDs[0] != "p4" {
		t.Errorf("EmptiedIDs = %v", report.EmptiedIDs)
	}
	var emptied *resolve.EmptiedCasesError
	if !errors.As(report.Abort, &emptied) {
		t.Errorf("Abort = %v", report.Abort)
	}
	if report.Batches != 4 {
		t.Errorf("translator plan should count one call per case, got %d", report.Batches)
	}
}
