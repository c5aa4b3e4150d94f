// Package evalcases loads evaluation sets from CSV or YAML files.
//
// CSV files need a header row naming at least question and expected_answer.
// Optional columns are tickers (separated by ';', ',' or spaces), period,
// id and top_k. YAML files hold either a list of cases or a mapping with
// a cases key.
package evalcases

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// Load reads the evaluation set at path, choosing the format by extension.
func Load(path string) ([]domain.EvalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open eval cases: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return LoadCSV(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("load eval cases %s: %w: %q", path, domain.ErrUnsupportedType, ext)
	}
}

// LoadCSV parses a CSV evaluation set.
func LoadCSV(r io.Reader) ([]domain.EvalCase, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.NewValidationError("eval cases: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read eval header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[name] = i
	}
	for _, req := range []string{"question", "expected_answer"} {
		if _, ok := cols[req]; !ok {
			return nil, domain.NewValidationError("eval cases: missing %s column", req)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var cases []domain.EvalCase
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read eval row %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}

		c := domain.EvalCase{
			ID:             field(rec, "id"),
			Question:       field(rec, "question"),
			ExpectedAnswer: field(rec, "expected_answer"),
			Tickers:        SplitTickers(field(rec, "tickers")),
			Period:         field(rec, "period"),
		}
		if raw := field(rec, "top_k"); raw != "" {
			k, err := strconv.Atoi(raw)
			if err != nil || k < 0 {
				return nil, domain.NewValidationError("eval row %d: invalid top_k %q", line, raw)
			}
			c.TopK = k
		}
		cases = append(cases, c)
	}

	return finalise(cases)
}

// LoadYAML parses a YAML evaluation set.
func LoadYAML(r io.Reader) ([]domain.EvalCase, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read eval cases: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.NewValidationError("eval cases: empty file")
	}

	var cases []domain.EvalCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		var doc struct {
			Cases []domain.EvalCase `yaml:"cases"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, domain.NewValidationError("eval cases: invalid YAML: %v", err)
		}
		cases = doc.Cases
	}

	for i := range cases {
		c := &cases[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Question = strings.TrimSpace(c.Question)
		c.ExpectedAnswer = strings.TrimSpace(c.ExpectedAnswer)
		c.Period = strings.TrimSpace(c.Period)
		var tickers []string
		for _, t := range c.Tickers {
			tickers = append(tickers, SplitTickers(t)...)
		}
		c.Tickers = tickers
	}
	return finalise(cases)
}

// SplitTickers splits a ticker list on ';', ',' and whitespace.
func SplitTickers(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == ' ' || r == '\t'
	})
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToUpper(p))
	}
	return out
}

// finalise assigns missing ids, normalises periods and validates every case.
func finalise(cases []domain.EvalCase) ([]domain.EvalCase, error) {
	if len(cases) == 0 {
		return nil, domain.NewValidationError("eval cases: no cases")
	}

	seen := make(map[string]bool, len(cases))
	for i := range cases {
		c := &cases[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("q%03d", i+1)
		}
		if seen[c.ID] {
			return nil, domain.NewValidationError("eval cases: duplicate id %q", c.ID)
		}
		seen[c.ID] = true
		c.Period = domain.NormalisePeriod(c.Period)
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return cases, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
