// Package vocab handles the caption vocabulary: the word-to-index map
// used for training and the special markers that frame every caption.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
)

// Special tokens every word map must define.
const (
	StartToken = "<start>"
	EndToken   = "<end>"
	PadToken   = "<pad>"
	UnkToken   = "<unk>"
)

// Vocabulary maps words to dense indices and back.
type Vocabulary struct {
	wordToIndex map[string]int
	indexToWord map[int]string
}

// Load reads a word map from a JSON file of the form
// {"word": index, ...}. The map must be injective and define the
// <start>, <end> and <pad> markers.
func Load(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word map: %w", err)
	}
	var wordToIndex map[string]int
	if err := json.Unmarshal(raw, &wordToIndex); err != nil {
		return nil, fmt.Errorf("parsing word map: %w", err)
	}
	return New(wordToIndex)
}

// New validates a word map and builds the vocabulary.
func New(wordToIndex map[string]int) (*Vocabulary, error) {
	indexToWord := make(map[int]string, len(wordToIndex))
	for word, idx := range wordToIndex {
		if prev, ok := indexToWord[idx]; ok {
			return nil, fmt.Errorf("word map is not injective: %q and %q both map to %d", prev, word, idx)
		}
		indexToWord[idx] = word
	}
	for _, special := range []string{StartToken, EndToken, PadToken} {
		if _, ok := wordToIndex[special]; !ok {
			return nil, fmt.Errorf("word map is missing %s", special)
		}
	}
	return &Vocabulary{wordToIndex: wordToIndex, indexToWord: indexToWord}, nil
}

// Size returns the number of entries, including special tokens.
func (v *Vocabulary) Size() int { return len(v.wordToIndex) }

// Index returns the index for a word, falling back to <unk> when the
// word is unknown and an <unk> entry exists.
func (v *Vocabulary) Index(word string) (int, bool) {
	if idx, ok := v.wordToIndex[word]; ok {
		return idx, true
	}
	if idx, ok := v.wordToIndex[UnkToken]; ok {
		return idx, true
	}
	return 0, false
}

// Word returns the word at an index.
func (v *Vocabulary) Word(idx int) (string, bool) {
	w, ok := v.indexToWord[idx]
	return w, ok
}

// Start returns the <start> marker index.
func (v *Vocabulary) Start() int { return v.wordToIndex[StartToken] }

// End returns the <end> marker index.
func (v *Vocabulary) End() int { return v.wordToIndex[EndToken] }

// Pad returns the <pad> marker index.
func (v *Vocabulary) Pad() int { return v.wordToIndex[PadToken] }

// Encode turns a word sequence into a training caption: <start>, the
// word indices, <end>.
func (v *Vocabulary) Encode(words []string) []int {
	out := make([]int, 0, len(words)+2)
	out = append(out, v.Start())
	for _, w := range words {
		if idx, ok := v.Index(w); ok {
			out = append(out, idx)
		}
	}
	return append(out, v.End())
}
