package testutil

// DefaultRootID is the root ID used when a scenario does not name one.
const DefaultRootID = "test-root-default"

// FixedRootIDGenerator hands out the same root ID every time.
//
// engine.FixedGenerator panics once its list is used up; this one never
// does, so a scenario can mount, close and remount without counting roots.
// Golden traces stay byte-identical because the ID never varies.
//
// Thread-safety: FixedRootIDGenerator is stateless and safe for concurrent use.
type FixedRootIDGenerator struct {
	id string
}

// NewFixedRootIDGenerator creates a generator for id. An empty id selects
// DefaultRootID.
func NewFixedRootIDGenerator(id string) *FixedRootIDGenerator {
	if id == "" {
		id = DefaultRootID
	}
	return &FixedRootIDGenerator{id: id}
}

// Generate implements engine.IDGenerator.
func (g *FixedRootIDGenerator) Generate() string {
	return g.id
}
