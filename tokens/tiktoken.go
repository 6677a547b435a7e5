package tokens

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/randalmurphal/proofread"
)

var (
	loaderOnce sync.Once

	encodersMu sync.Mutex
	encoders   = make(map[string]*tiktoken.Tiktoken)
)

// useOfflineRanks makes tiktoken read BPE ranks embedded in the binary
// instead of downloading them on first use.
func useOfflineRanks() {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}

// encoding returns the shared encoder for name, loading it on first use.
func encoding(name string) (*tiktoken.Tiktoken, error) {
	useOfflineRanks()

	encodersMu.Lock()
	defer encodersMu.Unlock()

	if enc, ok := encoders[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: load encoding %q: %v", proofread.ErrConfiguration, name, err)
	}
	encoders[name] = enc
	return enc, nil
}

// TiktokenCounter counts tokens with the BPE encoding the backend itself uses.
type TiktokenCounter struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the named encoding
// (e.g. "cl100k_base").
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	enc, err := encoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{name: encodingName, enc: enc}, nil
}

// Encoding returns the encoding name.
func (c *TiktokenCounter) Encoding() string {
	return c.name
}

// Count returns the exact number of BPE tokens in text.
// Special token sequences such as "<|endoftext|>" are counted, not rejected.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, []string{"all"}, nil))
}

// FitsInLimit returns true if the text fits within the token limit.
func (c *TiktokenCounter) FitsInLimit(text string, limit int) bool {
	return c.Count(text) <= limit
}

// CounterFor returns the counter matching the profile's tokenizer.
// Profiles without an encoding get a conservative character estimate.
func CounterFor(p Profile) (Counter, error) {
	if p.Encoding == "" {
		return NewEstimatingCounterWithRatio(ConservativeCharsPerToken), nil
	}
	return NewTiktokenCounter(p.Encoding)
}

// Count returns the token count of text for the named model.
// Unknown models fail with proofread.ErrConfiguration.
func Count(model, text string) (int, error) {
	p, err := LookupProfile(model)
	if err != nil {
		return 0, err
	}
	counter, err := CounterFor(p)
	if err != nil {
		return 0, err
	}
	return counter.Count(text), nil
}
