// Package textsplit breaks long replies into chunks a messaging channel
// accepts in one message.
package textsplit

import (
	"unicode"
)

// TelegramLimit is the maximum message length accepted by the Telegram Bot API.
const TelegramLimit = 4096

// Split cuts text into chunks of at most maxLen runes. Each cut is made at the
// last newline inside the limit, else at the last space, else exactly at
// maxLen. Whitespace at the start of the remainder is dropped. Text that
// already fits, or a non-positive maxLen, yields a single chunk.
func Split(text string, maxLen int) []string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxLen {
		cut := cutPoint(runes, maxLen)
		chunks = append(chunks, string(runes[:cut]))
		runes = trimLeftSpace(runes[cut:])
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// cutPoint returns an index in (0, maxLen]. The rune at maxLen is inspected
// too, so a separator right after a full chunk is used.
func cutPoint(runes []rune, maxLen int) int {
	window := runes[:maxLen+1]
	if i := lastIndex(window, '\n'); i > 0 {
		return i
	}
	if i := lastIndex(window, ' '); i > 0 {
		return i
	}
	return maxLen
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func trimLeftSpace(runes []rune) []rune {
	for len(runes) > 0 && unicode.IsSpace(runes[0]) {
		runes = runes[1:]
	}
	return runes
}
