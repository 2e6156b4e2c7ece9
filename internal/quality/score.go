package quality

// ScopeStats holds the dataset-level counters a scope's quality score is
// computed from.
type ScopeStats struct {
	Scope            string `json:"scope"`
	EntitiesWithData int    `json:"entities_with_data"`
	EntitiesTotal    int    `json:"entities_total"`
	RecordsValid     int    `json:"records_valid"`
	RecordsTotal     int    `json:"records_total"`
	Outliers         int    `json:"outliers"`
}

// CoveragePct is the percentage of entities in scope with any resolved data.
func (s ScopeStats) CoveragePct() float64 {
	if s.EntitiesTotal == 0 {
		return 0
	}
	return 100 * float64(s.EntitiesWithData) / float64(s.EntitiesTotal)
}

// ValidationPct is the percentage of records passing validation.
func (s ScopeStats) ValidationPct() float64 {
	if s.RecordsTotal == 0 {
		return 0
	}
	return 100 * float64(s.RecordsValid) / float64(s.RecordsTotal)
}

// OutlierPct is the percentage of records flagged as outliers.
func (s ScopeStats) OutlierPct() float64 {
	if s.RecordsTotal == 0 {
		return 0
	}
	return 100 * float64(s.Outliers) / float64(s.RecordsTotal)
}

// Score computes the weighted scope quality score on a 0-100 scale:
// 0.4*coverage + 0.4*validation + 0.2*(100 - outlier rate). It is monotonic:
// raising coverage or validation never lowers it, raising the outlier rate
// never raises it.
func Score(coveragePct, validationPct, outlierPct float64) float64 {
	return 0.4*coveragePct + 0.4*validationPct + 0.2*(100-outlierPct)
}

// ScoreFor computes the quality score from a scope's counters.
func ScoreFor(s ScopeStats) float64 {
	return Score(s.CoveragePct(), s.ValidationPct(), s.OutlierPct())
}
