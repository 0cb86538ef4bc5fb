package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/model"
)

func noneChanged(string) bool { return false }

func changedSet(names ...string) Changed {
	set := make(map[string]bool)
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestLoadFromFile_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icdiss.yaml")
	os.WriteFile(path, []byte(`layout: case_per_row
unknown_policy: fail
family: indirect_NMT
rcs_layout: region_first
tables_dir: tables
predictor_timeout: 5s
outputs:
  iss: false
  mais: true
  max_chapter_severity: true
`), 0644)

	c := Default()
	if err := c.LoadFromFile(path, noneChanged); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.Layout != "case_per_row" || c.Policy != "fail" || c.Family != "indirect_NMT" || c.RCSLayout != "region_first" {
		t.Errorf("unexpected enumerations: %+v", c)
	}
	if c.TablesDir != filepath.Join(dir, "tables") {
		t.Errorf("TablesDir = %q", c.TablesDir)
	}
	if c.PredictorTimeout != 5*time.Second {
		t.Errorf("PredictorTimeout = %v", c.PredictorTimeout)
	}
	if c.ISS || !c.MAIS || !c.ChapterMax {
		t.Errorf("outputs = %v %v %v", c.ISS, c.MAIS, c.ChapterMax)
	}
	// Unset keys keep their defaults.
	if c.PredictorURL != Default().PredictorURL {
		t.Errorf("PredictorURL = %q", c.PredictorURL)
	}
}

func TestLoadFromFile_FlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icdiss.yaml")
	os.WriteFile(path, []byte("unknown_policy: fail\nfamily: direct_NMT\n"), 0644)

	c := Default()
	c.Policy = "ignore"
	if err := c.LoadFromFile(path, changedSet("unknown-policy")); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.Policy != "ignore" {
		t.Errorf("explicit flag overridden: Policy = %q", c.Policy)
	}
	if c.Family != "direct_NMT" {
		t.Errorf("Family = %q", c.Family)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	c := Default()
	if err := c.LoadFromFile("/nonexistent/icdiss.yaml", noneChanged); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icdiss.yaml")
	os.WriteFile(path, []byte("outputs: [iss\n"), 0644)
	c := Default()
	if err := c.LoadFromFile(path, noneChanged); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ICDISS_DSN", "postgres://env")
	t.Setenv("ICDISS_LOG_FORMAT", "json")
	t.Setenv("ICDISS_PREDICTOR_URL", "http://predictor:9000")

	c := Default()
	c.LogFormat = "text"
	if err := c.LoadEnv(changedSet("log-format")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if c.DSN != "postgres://env" {
		t.Errorf("DSN = %q", c.DSN)
	}
	if c.LogFormat != "text" {
		t.Errorf("explicit flag overridden: LogFormat = %q", c.LogFormat)
	}
	if c.PredictorURL != "http://predictor:9000" {
		t.Errorf("PredictorURL = %q", c.PredictorURL)
	}
	if c.TablesDir != Default().TablesDir {
		t.Errorf("unset env changed TablesDir to %q", c.TablesDir)
	}
}

func writeTables(t *testing.T, dir string) {
	t.Helper()
	err := codetable.Write(dir,
		[]codetable.CodeRow{{Code: "S00.0", Index: 0}},
		[]codetable.RCSRow{{Index: 0, RCS: "1.1.1"}},
		nil)
	if err != nil {
		t.Fatalf("write tables: %v", err)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cases.csv")
	os.WriteFile(input, []byte("p1,S00.0\n"), 0644)
	writeTables(t, filepath.Join(dir, "tables"))

	c := Default()
	c.InputPath = input
	c.TablesDir = filepath.Join(dir, "tables")
	c.ChapterMax = true

	opts, err := c.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if opts.Family != model.FamilyIndirectFFNN || opts.Policy != model.PolicyClosest {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Outputs != (model.Outputs{ISS: true, ChapterMax: true}) {
		t.Errorf("Outputs = %+v", opts.Outputs)
	}

	// Direct families need the ISS table, which is absent.
	c.Family = string(model.FamilyDirectFFNN)
	if _, err := c.Validate(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected missing table error, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cases.csv")
	os.WriteFile(input, []byte("p1,S00.0\n"), 0644)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"policy", func(c *Config) { c.Policy = "nearest" }, model.ErrUnknownPolicy},
		{"layout", func(c *Config) { c.Layout = "tall" }, model.ErrUnknownLayout},
		{"family", func(c *Config) { c.Family = "indirect_GBM" }, model.ErrUnknownFamily},
		{"rcs layout", func(c *Config) { c.RCSLayout = "chapter_first" }, model.ErrUnknownRCSLayout},
		{"no outputs", func(c *Config) { c.ISS = false }, model.ErrNoOutputs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.InputPath = input
			tt.mutate(&c)
			if _, err := c.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	c := Default()
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for missing input")
	}
	c.InputPath = filepath.Join(dir, "absent.csv")
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for absent input")
	}
}

func TestOptions_DirectIgnoresOutputSelection(t *testing.T) {
	c := Default()
	c.Family = string(model.FamilyDirectNMT)
	c.ISS = false
	opts, err := c.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Outputs != (model.Outputs{ISS: true}) {
		t.Errorf("Outputs = %+v", opts.Outputs)
	}
}
