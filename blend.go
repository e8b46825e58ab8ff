package main

import "database/sql"

// Blending constants: the learned-accuracy weight ramps linearly with the
// number of observations and saturates at blendMaxWeight, so a model's
// self-reported confidence always keeps at least a 20% say.
const (
	blendSaturation = 20
	blendMaxWeight  = 0.8
)

// BlendConfidence combines a model's self-reported confidence with the
// empirically learned accuracy for the category. With no history the raw
// confidence passes through untouched; as observations accumulate the learned
// accuracy dominates, since a model can be systematically over- or
// under-confident for a specific category. The result is always in [0, 1].
func BlendConfidence(raw, accuracy float64, totalObservations int) float64 {
	weight := float64(totalObservations) / float64(blendSaturation)
	if weight > blendMaxWeight {
		weight = blendMaxWeight
	}
	blended := (1-weight)*raw + weight*accuracy
	return clamp(blended, 0, 1)
}

// BlendForCategory looks up the category's learned state and blends.
func BlendForCategory(db *sql.DB, kind, label string, raw float64) (float64, error) {
	raw = clamp(raw, 0, 1)
	rec, err := GetConfidenceRecord(db, kind, label)
	if err != nil {
		return raw, err
	}
	return BlendConfidence(raw, rec.Accuracy(), rec.TotalObservations), nil
}
