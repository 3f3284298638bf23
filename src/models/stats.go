package models

import "math"

// ROIPerTruePositive is the fixed value (in IDR) credited for every fraud
// transaction the model catches.
const ROIPerTruePositive = 1_500_000

// StatsSnapshot holds the running confusion matrix and derived metrics for
// one simulation run. A single instance is owned by the active run; everyone
// else reads copies via Clone.
type StatsSnapshot struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`

	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`

	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	F1        float64 `json:"f1"`
	FPR       float64 `json:"fpr"`

	PerType      map[string]int `json:"per_type"`       // flagged count per fraud type
	PerTypeTotal map[string]int `json:"per_type_total"` // ground-truth count per fraud type

	ROISaved int64 `json:"roi_saved"`
}

// NewStatsSnapshot returns a zeroed snapshot with initialized maps.
func NewStatsSnapshot() *StatsSnapshot {
	return &StatsSnapshot{
		PerType:      make(map[string]int),
		PerTypeTotal: make(map[string]int),
	}
}

// Update records one scored transaction and recomputes all derived metrics.
// Classification priority: fraud+flagged=TP, fraud+approved=FN,
// normal+flagged=FP, normal+approved=TN. Invariant maintained:
// Total == TP+FP+TN+FN == Approved+Flagged.
func (s *StatsSnapshot) Update(isFraud, isFlagged bool, fraudType string) {
	s.Total++
	if isFraud {
		s.PerTypeTotal[fraudType]++
		if isFlagged {
			s.TP++
			s.Flagged++
			s.PerType[fraudType]++
		} else {
			s.FN++
			s.Approved++
		}
	} else {
		if isFlagged {
			s.FP++
			s.Flagged++
		} else {
			s.TN++
			s.Approved++
		}
	}

	// Recompute from scratch on every update. O(1) anyway, and it keeps the
	// aggregate trivially consistent at ≤10k transactions per run.
	tp, fp, fn, tn := float64(s.TP), float64(s.FP), float64(s.FN), float64(s.TN)
	s.Recall = Round4(tp / math.Max(tp+fn, 1))
	s.Precision = Round4(tp / math.Max(tp+fp, 1))
	s.F1 = Round4(2 * s.Precision * s.Recall / math.Max(s.Precision+s.Recall, 1e-8))
	s.FPR = Round4(fp / math.Max(fp+tn, 1))
	s.ROISaved = int64(s.TP) * ROIPerTruePositive
}

// Clone returns a deep copy safe to hand to readers while the run keeps
// mutating the original.
func (s *StatsSnapshot) Clone() StatsSnapshot {
	out := *s
	out.PerType = make(map[string]int, len(s.PerType))
	for k, v := range s.PerType {
		out.PerType[k] = v
	}
	out.PerTypeTotal = make(map[string]int, len(s.PerTypeTotal))
	for k, v := range s.PerTypeTotal {
		out.PerTypeTotal[k] = v
	}
	return out
}

// Round4 rounds to 4 decimal digits, the precision used for all externally
// reported metrics and risk scores.
func Round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
