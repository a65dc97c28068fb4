// Package message rebuilds a message from the partial copies received by each station.
package message

import "strings"

// Reconstruct merges partial word sequences given in canonical station order.
// For every word slot the first station (in order) that received a non-empty
// word wins; slots nobody received stay empty. Differing words at the same
// slot are not reconciled.
func Reconstruct(messages [3][]string) string {
	n := 0
	for _, m := range messages {
		if len(m) > n {
			n = len(m)
		}
	}

	words := make([]string, n)
	for i := 0; i < n; i++ {
		for _, m := range messages {
			if i < len(m) && m[i] != "" {
				words[i] = m[i]
				break
			}
		}
	}

	return strings.TrimSpace(strings.Join(words, " "))
}
