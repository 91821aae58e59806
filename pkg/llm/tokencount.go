package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoders caches tiktoken encodings by model name; constructing one is
// not free (it loads a BPE rank table), so adapters should share this.
var (
	tokenEncoders   = map[string]*tiktoken.Tiktoken{}
	tokenEncodersMu sync.Mutex
)

// EstimateTokens counts tokens the way a provider's own tokenizer would,
// falling back to the cl100k_base encoding for models tiktoken doesn't
// recognize by name. Used when a vendor response omits a usage block (§4.1).
func EstimateTokens(model, text string) int {
	enc := encoderFor(model)
	if enc == nil {
		// Conservative fallback: ~4 characters per token, matching the
		// common rule of thumb when no tokenizer is available at all.
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateUsage estimates a Usage block from the resolved prompt and the
// completion text, for providers/models with no native usage accounting.
func EstimateUsage(model, prompt, completion string) Usage {
	p := EstimateTokens(model, prompt)
	c := EstimateTokens(model, completion)
	return Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}

func encoderFor(model string) *tiktoken.Tiktoken {
	tokenEncodersMu.Lock()
	defer tokenEncodersMu.Unlock()

	if enc, ok := tokenEncoders[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			tokenEncoders[model] = nil
			return nil
		}
	}
	tokenEncoders[model] = enc
	return enc
}
