package driven

import "time"

// Metrics records operational counters and latencies.
type Metrics interface {
	// ObserveRetrieval records one retrieval and the number of chunks returned.
	ObserveRetrieval(d time.Duration, chunks int)

	// ObserveGeneration records one generation attempt sequence for a model.
	ObserveGeneration(model string, d time.Duration, inputTokens, outputTokens int, cost float64, err error)

	// ObserveCitations records resolved citations and uncited sentences for one answer.
	ObserveCitations(cited, gaps int)

	// ObserveEvalUnit records one finished (model, case) pair.
	ObserveEvalUnit(model string, d time.Duration, outcome string)

	// ObserveIndexed records chunks written for one document.
	ObserveIndexed(chunks int)
}
