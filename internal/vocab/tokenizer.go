package vocab

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer splits raw caption text into the word sequence a
// Vocabulary encodes. The default implementation lowercases and splits
// on whitespace; the subword implementation wraps an OpenAI BPE
// encoding.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// WordTokenizer performs whitespace tokenization with lowercasing.
type WordTokenizer struct{}

func (WordTokenizer) Tokenize(text string) ([]string, error) {
	return strings.Fields(strings.ToLower(text)), nil
}

// BPETokenizer tokenizes text into BPE subword pieces using a tiktoken
// encoding such as "cl100k_base". Each piece becomes its own word-map
// entry.
type BPETokenizer struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewBPETokenizer loads the named tiktoken encoding.
func NewBPETokenizer(encodingName string) (*BPETokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encodingName, err)
	}
	return &BPETokenizer{encoding: encoding, name: encodingName}, nil
}

func (t *BPETokenizer) Tokenize(text string) ([]string, error) {
	ids := t.encoding.Encode(text, nil, nil)
	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = t.encoding.Decode([]int{id})
	}
	return pieces, nil
}

// VocabSize returns the encoding's token cardinality. tiktoken-go does
// not expose it directly, so the known sizes are hardcoded.
func (t *BPETokenizer) VocabSize() int {
	switch t.name {
	case "cl100k_base":
		return 100256
	case "p50k_base", "r50k_base":
		return 50257
	default:
		return 100000
	}
}
