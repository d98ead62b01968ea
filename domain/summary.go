package domain

import "time"

// Summary holds the facts reported for one aggregation window.
type Summary struct {
	TotalIncrements int
	FirstEventTime  time.Time
	LastEventTime   time.Time
	ReportTime      time.Time
}

// Summarize computes the report facts over records sorted by ingestion time.
// First and last event times are producer timestamps. It returns false for an
// empty window.
func Summarize(records []EventRecord, now time.Time) (Summary, bool) {
	if len(records) == 0 {
		return Summary{}, false
	}
	return Summary{
		TotalIncrements: len(records),
		FirstEventTime:  records[0].Timestamp.UTC(),
		LastEventTime:   records[len(records)-1].Timestamp.UTC(),
		ReportTime:      now.UTC(),
	}, true
}
