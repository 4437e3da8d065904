package ingest

import "strings"

// SentenceSplitter divides text into sentences. Grounded on
// rag/splitter.go's SentenceSplitter interface.
type SentenceSplitter interface {
	Split(text string) []string
}

// RegexSentenceSplitter splits on '.', '!', '?' followed by whitespace and
// an uppercase letter, a digit, or end of string, avoiding false splits on
// common abbreviations. Ported from rag/splitter.go's rune-based scanner.
type RegexSentenceSplitter struct{}

func (RegexSentenceSplitter) Split(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	abbreviations := map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
		"jr": true, "sr": true, "vs": true, "etc": true, "e.g": true, "i.e": true, "u.s": true,
	}
	isAbbreviation := func(end int) bool {
		// Look back up to 5 runes for the token ending at the period — a
		// crude abbreviation guard: a single letter (an initial, or the
		// first half of "U.S.") or one of the common abbreviations above.
		i := end - 1
		for i >= 0 && i >= end-5 && runes[i] != ' ' && runes[i] != '\n' {
			i--
		}
		word := strings.ToLower(string(runes[i+1 : end]))
		return len([]rune(word)) == 1 || abbreviations[word]
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			if r == '.' && isAbbreviation(i) {
				continue
			}
			next := i + 1
			for next < len(runes) && (runes[next] == ' ' || runes[next] == '\n') {
				next++
			}
			if next >= len(runes) || isUpperOrDigit(runes[next]) {
				sentence := strings.TrimSpace(string(runes[start : i+1]))
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				start = next
			}
		}
	}
	if start < len(runes) {
		rest := strings.TrimSpace(string(runes[start:]))
		if rest != "" {
			sentences = append(sentences, rest)
		}
	}
	return sentences
}

func isUpperOrDigit(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
