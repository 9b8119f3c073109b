package testutil

// FixedFlowGenerator returns the same flow token every time.
//
// With it, every root dispatch of a scenario shares one flow, and the same
// scenario always produces a byte-identical journal. dispatch.FixedGenerator
// instead hands out a list of tokens once each.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// DefaultFlowToken is used when NewFixedFlowGenerator gets an empty token.
const DefaultFlowToken = "test-flow-default"

// NewFixedFlowGenerator creates a fixed flow token generator.
//
// The token is typically set in the scenario YAML:
//
//	flow_token: "test-flow-00000000-0000-0000-0000-000000000001"
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = DefaultFlowToken
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed flow token.
// Implements dispatch.FlowTokenGenerator.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
