package spatial

import (
	"github.com/okian/tackle/internal/domain/model"
)

// Extract computes the full fixed-width feature vector of an event.
func Extract(event model.TackleEvent, group []model.PlayerRow, opts ...Option) (model.FeatureVector, error) {
	s := newSettings(opts)

	nearest, err := NearestPlayers(event, group, opts...)
	if err != nil {
		return model.FeatureVector{}, err
	}
	blockers, err := BlockersBetween(event, group, opts...)
	if err != nil {
		return model.FeatureVector{}, err
	}

	var fv model.FeatureVector
	fill(fv.ClosestDefenders[:], nearest.Defenders, s.padding)
	fill(fv.ClosestOffensive[:], nearest.Offensive, s.padding)
	if nearest.BallCarrierClosest {
		fv.BallCarrierClosest = 1
	}
	fv.BlockersBetween = blockers
	return fv, nil
}

func fill(dst []float64, cs []Candidate, padding float64) {
	for i := range dst {
		if i < len(cs) {
			dst[i] = cs[i].Distance
			continue
		}
		dst[i] = padding
	}
}
