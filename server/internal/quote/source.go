// Package quote produces the values pushed to subscribers. The only source
// today is Random, a stand-in for a real market data feed.
package quote

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/quotestream/quotestream/pkg/protocol"
)

// Source yields a fresh quote on every call. Implementations must be safe for
// concurrent use: the scheduler and the connection manager both call Next.
type Source interface {
	Next() protocol.Quote
}

// Random emits integer prices drawn uniformly from [Min, Max] for one security.
type Random struct {
	securityID string
	min, max   int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random source. If max < min the bounds are swapped.
func NewRandom(securityID string, min, max int) *Random {
	return NewRandomWithSeed(securityID, min, max, time.Now().UnixNano())
}

// NewRandomWithSeed is NewRandom with a fixed seed, for reproducible output.
func NewRandomWithSeed(securityID string, min, max int, seed int64) *Random {
	if max < min {
		min, max = max, min
	}
	return &Random{
		securityID: securityID,
		min:        min,
		max:        max,
		rng:        rand.New(rand.NewSource(seed)), //nolint:gosec // not security sensitive
	}
}

// Next returns a new quote.
func (r *Random) Next() protocol.Quote {
	r.mu.Lock()
	price := r.min + r.rng.Intn(r.max-r.min+1)
	r.mu.Unlock()
	return protocol.Quote{
		SecurityID:   r.securityID,
		CurrentPrice: strconv.Itoa(price),
	}
}
