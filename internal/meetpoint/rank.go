package meetpoint

import (
	"slices"

	"meetpoint/internal/models"
)

// Select orders candidates by overall score (desc), average travel time (asc)
// and generation index (asc), and keeps the first topK. The input is not modified.
func Select(scored []models.CandidateLocation, topK int) ([]models.CandidateLocation, error) {
	if len(scored) == 0 {
		return nil, models.NewError(models.KindEmptyCandidateSet, "meetpoint.select", "no candidates to rank", nil)
	}

	ranked := slices.Clone(scored)
	slices.SortStableFunc(ranked, compareCandidates)

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

func compareCandidates(a, b models.CandidateLocation) int {
	switch {
	case a.OverallScore > b.OverallScore:
		return -1
	case a.OverallScore < b.OverallScore:
		return 1
	case a.AverageTravelTimeMinutes < b.AverageTravelTimeMinutes:
		return -1
	case a.AverageTravelTimeMinutes > b.AverageTravelTimeMinutes:
		return 1
	default:
		return a.Index - b.Index
	}
}
