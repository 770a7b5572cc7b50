package engine

// chunkText splits text into fixed-size overlapping windows. Text no longer
// than size is a single chunk; otherwise window starts advance by
// size − overlap and the final window's end is clamped to the text length,
// so no empty trailing chunk is produced.
func chunkText(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		// Guarded against by config validation; fall back to disjoint
		// windows rather than looping forever.
		step = size
	}
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
