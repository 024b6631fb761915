package semantic

// Canonical named vector spaces. A collection may declare the text space
// alone or both; the dispatcher must only write spaces the collection
// declares.
const (
	SpaceText  = "text-vec"
	SpaceImage = "clip-vec"
)

// Space declares one named vector space of a collection.
type Space struct {
	Name string
	Dims int
}

// Point is the atomic indexed unit: one embedding per applicable named
// space plus a display payload.
type Point struct {
	ID      string
	Vectors map[string][]float32
	Payload map[string]any // path, type, text, chunk_index
}

// Hit is a single search result with its decoded payload.
type Hit struct {
	ID         string
	Score      float32
	Path       string
	Type       string
	Text       string
	ChunkIndex int
}

// Lane is one per-space sub-query of a fused search.
type Lane struct {
	Space  string
	Vector []float32
	TopK   int
}
