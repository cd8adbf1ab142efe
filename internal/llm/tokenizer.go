package llm

import (
	"encoding/json"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/youruser/wireframe/internal/tree"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// getCodec returns the cl100k_base tokenizer, a reasonable approximation
// for the models the backend targets.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens returns an approximate token count for the given text.
func EstimateTokens(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}

	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

// EstimateRequestTokens estimates the size of an outbound generation
// request: the prompt plus, in delta mode, the serialized base tree. The
// frontend shows this before the user commits to a generation.
func EstimateRequestTokens(prompt string, base *tree.Tree) (int, error) {
	total, err := EstimateTokens(prompt)
	if err != nil {
		return 0, err
	}
	if !base.IsEmpty() {
		data, err := json.Marshal(base)
		if err != nil {
			return 0, err
		}
		n, err := EstimateTokens(string(data))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// EstimateTokensSimple returns a token count, defaulting to 0 on error.
func EstimateTokensSimple(text string) int {
	count, err := EstimateTokens(text)
	if err != nil {
		return 0
	}
	return count
}
