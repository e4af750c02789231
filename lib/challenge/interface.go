package challenge

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sort"
	"sync"
)

var (
	registry map[string]Factory = map[string]Factory{}
	regLock  sync.RWMutex
)

// Register makes a renderer factory available under name. Renderer packages
// call it from init.
func Register(name string, f Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

func Methods() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for method := range registry {
		result = append(result, method)
	}
	sort.Strings(result)
	return result
}

// Media is an encoded rendering of challenge text.
type Media struct {
	Data     []byte
	MimeType string
}

// Renderer turns challenge text into encoded media.
type Renderer interface {
	// Render encodes text. rng is owned by the caller and must not be
	// retained past the call.
	Render(ctx context.Context, rng *rand.Rand, text string) (*Media, error)
}

// Factory builds a Renderer from its opaque configuration block.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Renderer, error)
	Valid(config json.RawMessage) error
}
