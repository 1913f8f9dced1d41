package detection

import "context"

// Client port (interface for the external detection service)
type Client interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// Summarizer port for the optional AI narrative over a merged result.
type Summarizer interface {
	Summarize(ctx context.Context, resultJSON string) (string, error)
}
