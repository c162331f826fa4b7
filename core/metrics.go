package core

import "context"

// NopMetricsRecorder discards the access.<operation>.total counters and
// access.<operation>.duration_ms histograms the service emits per token,
// identity, and permission operation. It is the default recorder when the
// host does not wire one.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// cloneTags keeps recorders from mutating the operation/status/grant tag
// set shared with the structured log entry for the same operation.
func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
