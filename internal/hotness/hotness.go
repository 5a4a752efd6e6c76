// Package hotness tracks how often geohash cells contribute matches to range
// queries.
package hotness

type Interface interface {
	Inc(cell string)
	Score(cell string) float64
	Reset(cells ...string)
}

// Scored is a cell with its decayed score at the time it was read.
type Scored struct {
	Cell  string  `json:"cell"`
	Score float64 `json:"score"`
}

// Ranker is implemented by trackers that can list their hottest cells.
type Ranker interface {
	Top(n int) []Scored
}
