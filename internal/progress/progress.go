// Package progress derives per-subject statistics from stored exam attempts.
// Everything here is a pure function of its input.
package progress

import (
	"math"

	"github.com/pavelanni/tutor/internal/model"
)

// Band maps a percentage onto the five reporting buckets.
func Band(score int) model.Band {
	switch {
	case score >= 86:
		return model.BandExcellent
	case score >= 71:
		return model.BandGood
	case score >= 51:
		return model.BandAverage
	case score >= 31:
		return model.BandWeak
	default:
		return model.BandNeedsWork
	}
}

// Trend compares the last two scores. Fewer than two scores yields TrendNone.
func Trend(scores []int) model.Trend {
	if len(scores) < 2 {
		return model.TrendNone
	}
	diff := scores[len(scores)-1] - scores[len(scores)-2]
	switch {
	case diff > 0:
		return model.TrendImproving
	case diff < 0:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// Aggregate groups attempts by subject in the order they are given, which is
// expected to be chronological. Attempts without a score are skipped.
func Aggregate(attempts []model.ExamAttempt) model.ProgressReport {
	var order []string
	scores := make(map[string][]int)
	for _, a := range attempts {
		if a.ScorePercent == nil {
			continue
		}
		if _, seen := scores[a.Subject]; !seen {
			order = append(order, a.Subject)
		}
		scores[a.Subject] = append(scores[a.Subject], *a.ScorePercent)
	}

	report := model.ProgressReport{AttemptCount: len(attempts)}
	for _, subject := range order {
		s := scores[subject]
		latest := s[len(s)-1]
		report.Subjects = append(report.Subjects, model.SubjectStat{
			Subject: subject,
			Scores:  s,
			Latest:  latest,
			Band:    Band(latest),
			Trend:   Trend(s),
		})
	}
	report.OverallAverage = OverallAverage(report.Subjects)
	return report
}

// OverallAverage is the rounded mean of each subject's latest score, or nil
// when there are no subjects.
func OverallAverage(stats []model.SubjectStat) *int {
	if len(stats) == 0 {
		return nil
	}
	sum := 0
	for _, st := range stats {
		sum += st.Latest
	}
	avg := int(math.Round(float64(sum) / float64(len(stats))))
	return &avg
}
