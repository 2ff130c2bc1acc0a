package ml

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	padToken = "[PAD]"
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
)

// WordPieceTokenizer is the subword tokeniser used by the bert variant. Its
// vocabulary is loaded from a pretrained encoder's vocab.txt and persisted
// verbatim inside neural model packages.
type WordPieceTokenizer struct {
	Vocab  map[string]int
	MaxLen int
}

// LoadWordPieceTokenizer reads vocab.txt from dir (one token per line, line
// number = token id).
func LoadWordPieceTokenizer(dir string, maxLen int) (*WordPieceTokenizer, error) {
	path := filepath.Join(dir, "vocab.txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenizer vocabulary %s", ErrMissingDependency, path)
	}
	defer f.Close()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	i := 0
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			continue
		}
		vocab[token] = i
		i++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	for _, special := range []string{padToken, unkToken, clsToken, sepToken} {
		if _, ok := vocab[special]; !ok {
			return nil, fmt.Errorf("tokenizer vocabulary is missing %s", special)
		}
	}
	return &WordPieceTokenizer{Vocab: vocab, MaxLen: maxLen}, nil
}

// Save writes the vocabulary as vocab.txt under dir.
func (t *WordPieceTokenizer) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tokens := make([]string, len(t.Vocab))
	for tok, id := range t.Vocab {
		if id >= 0 && id < len(tokens) {
			tokens[id] = tok
		}
	}
	f, err := os.Create(filepath.Join(dir, "vocab.txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, tok := range tokens {
		fmt.Fprintln(w, tok)
	}
	return w.Flush()
}

// Encode produces fixed-length input-id and attention-mask sequences with
// [CLS] ... [SEP] framing, post-padding and post-truncation.
func (t *WordPieceTokenizer) Encode(texts []string) (ids [][]int, mask [][]int) {
	ids = make([][]int, len(texts))
	mask = make([][]int, len(texts))
	for i, text := range texts {
		pieces := []int{t.Vocab[clsToken]}
		for _, word := range basicTokens(text) {
			pieces = append(pieces, t.wordPieces(word)...)
			if len(pieces) >= t.MaxLen-1 {
				break
			}
		}
		if len(pieces) > t.MaxLen-1 {
			pieces = pieces[:t.MaxLen-1]
		}
		pieces = append(pieces, t.Vocab[sepToken])

		row := make([]int, t.MaxLen)
		m := make([]int, t.MaxLen)
		pad := t.Vocab[padToken]
		for j := 0; j < t.MaxLen; j++ {
			if j < len(pieces) {
				row[j] = pieces[j]
				m[j] = 1
			} else {
				row[j] = pad
			}
		}
		ids[i] = row
		mask[i] = m
	}
	return ids, mask
}

// wordPieces splits one word by greedy longest-match-first, with the usual
// "##" continuation prefix. Unmatchable words collapse to [UNK].
func (t *WordPieceTokenizer) wordPieces(word string) []int {
	var out []int
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		match := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.Vocab[piece]; ok {
				match = id
				break
			}
			end--
		}
		if match < 0 {
			return []int{t.Vocab[unkToken]}
		}
		out = append(out, match)
		start = end
	}
	return out
}

// basicTokens lower-cases and splits on whitespace and punctuation, keeping
// punctuation as standalone tokens.
func basicTokens(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		case isPunct(r):
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func isPunct(r rune) bool {
	return strings.ContainsRune(".,;:!?()[]{}<>\"'`~@#$%^&*-_=+/\\|", r)
}

// sortedVocabTokens is used by tests to inspect vocabulary order.
func (t *WordPieceTokenizer) sortedVocabTokens() []string {
	tokens := make([]string, 0, len(t.Vocab))
	for tok := range t.Vocab {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool { return t.Vocab[tokens[i]] < t.Vocab[tokens[j]] })
	return tokens
}
