package behavior

// History window
const (
	// HistoryLimit bounds how many past patterns feed one analysis.
	HistoryLimit = 50

	// DailyFrequencyWindow is the lookback for the daily_frequency feature,
	// expressed in hours.
	DailyFrequencyWindow = 24
)

// Cold-start heuristic weights. With no history the score is assembled
// from static context signals only; the weights sum below 1.0 so the
// result stays in [0,1] without clamping surprises.
const (
	ColdStartBase       = 0.20
	ColdStartOffHours   = 0.20
	ColdStartNoUA       = 0.15
	ColdStartPrivateIP  = 0.05
)

// Deviation scoring weights. Higher deviation and a higher historical
// average both push the score up monotonically.
const (
	DeviationWeight  = 0.6
	HistoricalWeight = 0.4
)

// Off-hours boundaries: local activity between these hours is treated
// as unusual for referral traffic.
const (
	OffHoursStart = 23
	OffHoursEnd   = 6
)
