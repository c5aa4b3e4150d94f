package services

import (
	"sort"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

// Aggregate derives a report from results. It is pure: the same results
// always give the same report. Means and pass rates consider only scored
// results; cost and tokens include every result, failures too. Interrupted
// pairs are counted apart from failures.
func Aggregate(results []domain.EvalResult, threshold float64) domain.Report {
	report := domain.Report{Threshold: threshold, Models: []domain.ModelSummary{}, Cases: []domain.CaseSummary{}}
	if len(results) > 0 {
		report.RunID = results[0].RunID
	}

	byModel := make(map[string]*modelAcc)
	byCase := make(map[string]*domain.CaseSummary)
	for i := range results {
		r := &results[i]

		acc, ok := byModel[r.Model]
		if !ok {
			acc = &modelAcc{summary: domain.ModelSummary{Model: r.Model}}
			byModel[r.Model] = acc
		}
		acc.add(r, threshold)

		cs, ok := byCase[r.CaseID]
		if !ok {
			cs = &domain.CaseSummary{CaseID: r.CaseID, Question: r.Question, Scores: make(map[string]*float64)}
			byCase[r.CaseID] = cs
		}
		cs.Scores[r.Model] = r.Score
	}

	for _, acc := range byModel {
		report.Models = append(report.Models, acc.finish())
	}
	sort.Slice(report.Models, func(i, j int) bool { return report.Models[i].Model < report.Models[j].Model })

	for _, cs := range byCase {
		summariseCase(cs)
		report.Cases = append(report.Cases, *cs)
	}
	sort.Slice(report.Cases, func(i, j int) bool { return report.Cases[i].CaseID < report.Cases[j].CaseID })

	return report
}

type modelAcc struct {
	summary domain.ModelSummary
	sum     float64
	passed  int
}

func (a *modelAcc) add(r *domain.EvalResult, threshold float64) {
	s := &a.summary
	s.Cases++
	s.InputTokens += r.Usage.InputTokens
	s.OutputTokens += r.Usage.OutputTokens
	s.TotalCost += r.Usage.Cost

	switch {
	case r.Score != nil:
		s.Scored++
		a.sum += *r.Score
		if *r.Score >= threshold {
			a.passed++
		}
	case r.Interrupted():
		s.Interrupted++
		s.InterruptedCases = append(s.InterruptedCases, r.CaseID)
	case r.NeedsReview:
		s.Review++
		s.FailedCases = append(s.FailedCases, r.CaseID)
	default:
		s.Failed++
		s.FailedCases = append(s.FailedCases, r.CaseID)
	}
}

func (a *modelAcc) finish() domain.ModelSummary {
	s := a.summary
	if s.Scored > 0 {
		s.MeanScore = domain.Float(a.sum / float64(s.Scored))
		s.PassRate = domain.Float(float64(a.passed) / float64(s.Scored))
	}
	sort.Strings(s.FailedCases)
	sort.Strings(s.InterruptedCases)
	return s
}

func summariseCase(cs *domain.CaseSummary) {
	var sum float64
	n := 0
	for _, score := range cs.Scores {
		if score == nil {
			continue
		}
		v := *score
		if cs.Min == nil || v < *cs.Min {
			cs.Min = domain.Float(v)
		}
		if cs.Max == nil || v > *cs.Max {
			cs.Max = domain.Float(v)
		}
		sum += v
		n++
	}
	if n == 0 {
		return
	}
	cs.Mean = domain.Float(sum / float64(n))
	cs.Spread = domain.Float(*cs.Max - *cs.Min)
}
