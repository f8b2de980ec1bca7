package ports

import "time"

// Metrics receives storage layer measurements.
type Metrics interface {
	// ObserveOperation records one orchestrator call ("store", "find_by_ref",
	// "find_all_by", "delete") with its duration and outcome.
	ObserveOperation(op string, d time.Duration, err error)
	DocumentsSaved(schemaPath string, n int)
	IndexEntriesSaved(schemaPath string, n int)
	UniqueViolation(schemaPath, attr string)
	ReferencesResolved(n int)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, time.Duration, error) {}
func (NopMetrics) DocumentsSaved(string, int)                    {}
func (NopMetrics) IndexEntriesSaved(string, int)                 {}
func (NopMetrics) UniqueViolation(string, string)                {}
func (NopMetrics) ReferencesResolved(int)                        {}

var _ Metrics = NopMetrics{}
