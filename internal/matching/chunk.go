package matching

// Chunking parameters for long reference documents, in runes. A document at
// or under the threshold is encoded whole; anything longer is split into
// overlapping windows and each window gets its own vector.
const (
	DefaultChunkThreshold = 5000
	DefaultChunkWindow    = 4000
	DefaultChunkOverlap   = 500
)

// Chunk splits text into overlapping windows. Matching against a chunked
// reference takes the maximum similarity across its windows: the best local
// match wins, not an average.
func Chunk(text string, threshold, window, overlap int) []string {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	if window <= 0 {
		window = DefaultChunkWindow
	}
	if overlap < 0 || overlap >= window {
		overlap = DefaultChunkOverlap
	}

	runes := []rune(text)
	if len(runes) <= threshold {
		return []string{text}
	}

	step := window - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
