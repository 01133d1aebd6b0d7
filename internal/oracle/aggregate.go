package oracle

import "proptoken/internal/oracle/models"

// Aggregate scores a category as the arithmetic mean of its evidence confidences.
// An empty list is an EmptyEvidenceError; there is no default score.
func Aggregate(category models.Category, evidences []models.Evidence) (models.Result, error) {
	if len(evidences) == 0 {
		return models.Result{}, &EmptyEvidenceError{Category: category}
	}

	var sum float64
	for _, ev := range evidences {
		sum += ev.Confidence
	}

	kept := make([]models.Evidence, len(evidences))
	copy(kept, evidences)

	return models.Result{
		Category:  category,
		Score:     sum / float64(len(evidences)),
		Evidences: kept,
	}, nil
}

// AggregateExistence combines satellite and activity evidence.
func AggregateExistence(evidences ...models.Evidence) (models.Result, error) {
	return Aggregate(models.CategoryExistence, evidences)
}

// AggregateOwnership combines registry evidence.
func AggregateOwnership(evidences ...models.Evidence) (models.Result, error) {
	return Aggregate(models.CategoryOwnership, evidences)
}

// activityPassthrough reports the activity evidence as its own category without
// re-aggregation. The same evidence also counts toward existence.
func activityPassthrough(ev models.Evidence) models.Result {
	return models.Result{
		Category:  models.CategoryActivity,
		Score:     ev.Confidence,
		Evidences: []models.Evidence{ev},
	}
}
