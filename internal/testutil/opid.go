package testutil

// FixedOpIDGenerator returns the same op id every time, so that log
// output of a test run is byte-identical across runs.
//
// Thread-safety: FixedOpIDGenerator is stateless and safe for concurrent use.
type FixedOpIDGenerator struct {
	id string
}

// NewFixedOpIDGenerator creates a generator for id.
// If id is empty, Generate returns "test-op".
func NewFixedOpIDGenerator(id string) *FixedOpIDGenerator {
	if id == "" {
		id = "test-op"
	}
	return &FixedOpIDGenerator{id: id}
}

// Generate returns the fixed op id.
func (g *FixedOpIDGenerator) Generate() string {
	return g.id
}
