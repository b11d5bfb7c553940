// Package screening runs the per-unit pipeline over a batch of well
// observations.
//
// Each (chemical, endpoint) unit is an independent computation: plate
// filtering, aggregation, well-count filtering, classification, formatting
// and, for flags 2 to 5, model fitting. Units run on a bounded worker group,
// each writing only its own pre-allocated result slot. After every unit has
// finished the runner performs a single ordered reduction that routes each
// result to the Reporter. A unit that fails, panics or exceeds its timeout is
// recorded as failed and the batch continues.
package screening
