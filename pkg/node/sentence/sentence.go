// Package sentence implements the sentence/word model of DocuFS documents.
//
// A sentence boundary is a single '.', '!' or '?'. A run of two or more
// delimiter characters is not a boundary: "wait... ok." is one sentence,
// "Hi. Bye." is two. The delimiter stays as the last character of its
// sentence; whitespace between sentences is consumed. Words are maximal
// non-whitespace runs inside a sentence.
package sentence

import "strings"

// Delimiters are the sentence-ending characters.
const Delimiters = ".!?"

func isDelimiter(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Parse splits content into sentences under the single-delimiter rule.
// Whitespace-only content yields no sentences.
func Parse(content string) []string {
	var out []string
	n := len(content)
	i := 0
	for i < n {
		for i < n && isSpace(content[i]) {
			i++
		}
		if i >= n {
			break
		}
		start := i
		end := -1
		for j := i; j < n; j++ {
			if !isDelimiter(content[j]) {
				continue
			}
			k := j
			for k < n && isDelimiter(content[k]) {
				k++
			}
			if k-j == 1 {
				end = j
				break
			}
			// Multi-delimiter run: part of the sentence, keep going.
			j = k - 1
		}
		if end >= 0 {
			out = append(out, content[start:end+1])
			i = end + 1
		} else {
			tail := strings.TrimRight(content[start:], " \t\n\r")
			if tail != "" {
				out = append(out, tail)
			}
			break
		}
	}
	return out
}

// Words tokenizes a sentence into its words.
func Words(s string) []string {
	return strings.Fields(s)
}

// JoinWords rebuilds a sentence from words, single-space separated.
func JoinWords(words []string) string {
	return strings.Join(words, " ")
}

// Rebuild reassembles a document from its sentences: single-space
// separated, newline terminated. Zero sentences yield the empty document.
func Rebuild(sentences []string) string {
	nonEmpty := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return strings.Join(nonEmpty, " ") + "\n"
}

// EndsWithDelimiter reports whether s, ignoring trailing whitespace, ends
// with a valid single delimiter. A trailing multi-delimiter run does not
// count.
func EndsWithDelimiter(s string) bool {
	end := len(s)
	for end > 0 && isSpace(s[end-1]) {
		end--
	}
	if end == 0 || !isDelimiter(s[end-1]) {
		return false
	}
	if end >= 2 && isDelimiter(s[end-2]) {
		return false
	}
	return true
}

// Stats returns the word and character counts of a document.
func Stats(content string) (words, chars int) {
	return len(strings.Fields(content)), len(content)
}
