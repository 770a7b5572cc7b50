package engine

import (
	"strings"
	"testing"
)

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	text := "short document"
	chunks := chunkText(text, 400, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected chunk to equal input, got %q", chunks[0])
	}
}

func TestChunkText_ExactSizeSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 400)
	chunks := chunkText(text, 400, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for exact-size text, got %d", len(chunks))
	}
}

func TestChunkText_OverlappingWindows(t *testing.T) {
	// 1000 chars at size 400 / overlap 50: windows start at 0, 350, 700,
	// with the last clamped to the text length.
	text := strings.Repeat("x", 1000)
	chunks := chunkText(text, 400, 50)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{400, 400, 300}
	for i, chunk := range chunks {
		if len(chunk) != wantLens[i] {
			t.Errorf("chunk %d: expected length %d, got %d", i, wantLens[i], len(chunk))
		}
	}
}

func TestChunkText_AdjacentChunksShareOverlap(t *testing.T) {
	// Distinct characters so overlap regions are identifiable.
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	text := sb.String()

	chunks := chunkText(text, 400, 50)
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-50:]
		head := chunks[i][:50]
		if tail != head {
			t.Errorf("chunks %d/%d: overlap mismatch: %q vs %q", i-1, i, tail, head)
		}
	}
}

func TestChunkText_ReassemblesToOriginal(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 957; i++ {
		sb.WriteByte(byte('A' + i%26))
	}
	text := sb.String()

	chunks := chunkText(text, 400, 50)
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, chunk := range chunks[1:] {
		rebuilt.WriteString(chunk[50:])
	}
	if rebuilt.String() != text {
		t.Error("dropping each chunk's leading overlap should reassemble the original text")
	}
}

func TestChunkText_ZeroOverlap(t *testing.T) {
	text := strings.Repeat("y", 900)
	chunks := chunkText(text, 300, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 disjoint chunks, got %d", len(chunks))
	}
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total != 900 {
		t.Errorf("disjoint chunks should cover text exactly, covered %d of 900", total)
	}
}
