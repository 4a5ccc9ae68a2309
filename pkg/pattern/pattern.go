// Package pattern defines the semantic data types verifyapi renders.
// Patterns are pure data; renderers decide presentation.
package pattern

// PatternType identifies the kind of visualization pattern.
type PatternType string

const (
	PatternTypeSummary     PatternType = "summary"
	PatternTypeLeaderboard PatternType = "leaderboard"
	PatternTypeTestTable   PatternType = "test-table"
	PatternTypeSparkline   PatternType = "sparkline"
	PatternTypeComparison  PatternType = "comparison"
	PatternTypeTail        PatternType = "tail"
	PatternTypeError       PatternType = "error"
)

// Pattern is the interface all visualization patterns implement.
type Pattern interface {
	Type() PatternType
}
