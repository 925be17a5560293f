package scoring

import "errors"

var (
	// ErrNoScorableKpis means none of the comparison results carries a
	// weighted KPI. It is an expected state, not a failure.
	ErrNoScorableKpis = errors.New("no scorable kpis")
	// ErrInvalidWeights means a weight set is empty, negative or does not sum to 1.
	ErrInvalidWeights = errors.New("invalid kpi weights")
)
