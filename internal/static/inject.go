package static

import (
	"bytes"
	"io"
)

// Candidates in priority order: the first one present anywhere in the
// document wins, and the snippet goes in front of its first occurrence.
var injectCandidates = [][]byte{
	[]byte("</body>"),
	[]byte("</svg>"),
	[]byte("</head>"),
}

const scanChunkSize = 32 * 1024

// findInjectionPoint reads r to the end (or until a </body> is found) and
// returns the byte offset to insert the snippet at. Matching is ASCII
// case-insensitive.
func findInjectionPoint(r io.Reader) (int64, bool, error) {
	found := make([]int64, len(injectCandidates))
	overlap := 0
	for i := range injectCandidates {
		found[i] = -1
		overlap = max(overlap, len(injectCandidates[i])-1)
	}

	buf := make([]byte, scanChunkSize)
	var carry []byte
	var base int64

	for {
		n, err := r.Read(buf)
		if n > 0 {
			window := append(carry, buf[:n]...)
			lower := asciiLower(window)

			for i, candidate := range injectCandidates {
				if found[i] >= 0 {
					continue
				}
				if idx := bytes.Index(lower, candidate); idx >= 0 {
					found[i] = base + int64(idx)
				}
			}

			if found[0] >= 0 {
				break
			}

			keep := min(overlap, len(window))
			carry = append([]byte(nil), window[len(window)-keep:]...)
			base += int64(len(window) - keep)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false, err
		}
	}

	for _, offset := range found {
		if offset >= 0 {
			return offset, true, nil
		}
	}

	return 0, false, nil
}

func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}

	return out
}
