package prediction

// Score is a predicted final scoreline, each side clamped to a realistic
// integer range.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Market is one betting-market estimate. Recommended is only ever true
// when both the market's own probability threshold and the overall
// prediction confidence threshold are met.
type Market struct {
	Probability float64 `json:"probability"`
	Recommended bool    `json:"recommended"`
}

type CornerMarkets struct {
	Over65  Market `json:"over65"`
	Over85  Market `json:"over85"`
	Over105 Market `json:"over105"`
}

type Markets struct {
	Over15Goals Market        `json:"over15Goals"`
	Over25Goals Market        `json:"over25Goals"`
	Over35Goals Market        `json:"over35Goals"`
	BTTS        Market        `json:"btts"`
	Corners     CornerMarkets `json:"corners"`
}

// Prediction is derived on demand from two TeamStatistics records, never
// stored. Win/draw/loss probabilities sum to 100 after rounding.
type Prediction struct {
	HomeWin        float64  `json:"homeWin"`
	Draw           float64  `json:"draw"`
	AwayWin        float64  `json:"awayWin"`
	PredictedScore Score    `json:"predictedScore"`
	Confidence     int      `json:"confidence"`
	Insights       []string `json:"insights"`
	Markets        Markets  `json:"bettingMarkets"`
}
