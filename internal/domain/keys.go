package domain

import "fmt"

const (
	HistoryPrefix = "history:"
	RunMetaPrefix = "run:meta:"
)

// HistoryRunPrefix builds the prefix under which every outcome of a run lives
func HistoryRunPrefix(runID string) string {
	return fmt.Sprintf("%s%s:", HistoryPrefix, runID)
}

// HistoryKey builds the key for one outcome; the zero padded sequence keeps
// badger's lexical ordering equal to append order
func HistoryKey(runID string, sequence int64) string {
	return fmt.Sprintf("%s%020d", HistoryRunPrefix(runID), sequence)
}

// RunMetaKey builds the key for the summary record of a finished run
func RunMetaKey(runID string) string {
	return fmt.Sprintf("%s%s", RunMetaPrefix, runID)
}
