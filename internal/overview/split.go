package overview

import "strings"

// Split cuts content into overlapping chunks of at most size runes. Inside
// each window it prefers to end at a paragraph break, then after sentence
// punctuation; without a clean break the next chunk starts size-overlap runes
// further on. An overlap outside [0, size) is treated as zero.
//
// Every chunk starts strictly after the previous one, so Split always
// terminates. With no clean breaks it returns ceil(len/(size-overlap)) chunks.
// A chunk that starts after a clean break and reaches the end is the last.
func Split(content string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	rs := []rune(content)
	n := len(rs)
	if n == 0 {
		return nil
	}

	step := size - overlap
	// A clean break must leave the chunk at least this long, which also
	// keeps the next start past the current one.
	minLen := max(size/2, overlap+1)

	chunks := make([]string, 0, n/step+1)
	clean := false
	for start := 0; start < n; {
		end := min(start+size, n)
		next := start + step
		broke := false
		if end < n {
			if bp := breakPoint(rs, start+minLen, end); bp > 0 {
				end = bp
				next = bp - overlap
				broke = true
			}
		}
		chunks = append(chunks, string(rs[start:end]))
		if clean && end == n {
			break
		}
		start, clean = next, broke
	}
	return chunks
}

// breakPoint returns the index just past the last clean break in rs[from:to],
// or -1 when there is none.
func breakPoint(rs []rune, from, to int) int {
	if from >= to {
		return -1
	}
	window := string(rs[from:to])
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return from + len([]rune(window[:i+2]))
	}
	best := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
		}
	}
	if best < 0 {
		return -1
	}
	return from + len([]rune(window[:best+2]))
}
