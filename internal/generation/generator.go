package generation

import "context"

// Generator sends a prompt to a text-generation model and returns its completion.
// Failures are reported as domain GenerationError values.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are the decoding parameters applied to every request.
type Params struct {
	MaxNewTokens      int
	Temperature       float64
	DoSample          bool
	RepetitionPenalty float64
}

// DefaultParams mirror a deterministic, low-temperature decoding setup.
func DefaultParams() Params {
	return Params{
		MaxNewTokens:      512,
		Temperature:       0.2,
		DoSample:          false,
		RepetitionPenalty: 1.03,
	}
}
