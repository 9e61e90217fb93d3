package pricing

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
)

// ForexVolatility bounds one tick's relative move from the base rate.
const ForexVolatility = 0.0005

var forexBase = map[string]struct {
	rate   string
	change string
}{
	"EUR/USD": {"1.0924", "0.15"},
	"GBP/USD": {"1.2712", "-0.05"},
	"USD/JPY": {"148.12", "0.32"},
	"AUD/USD": {"0.6543", "0.12"},
	"USD/CAD": {"1.3521", "-0.08"},
	"USD/CHF": {"0.8845", "0.04"},
	"NZD/USD": {"0.6012", "0.22"},
	"USD/ZAR": {"18.921", "0.45"},
}

// ForexPairs lists the quoted pairs in a stable order.
func ForexPairs() []string {
	pairs := make([]string, 0, len(forexBase))
	for p := range forexBase {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

// IsForexPair reports whether pair is quoted by the synthetic forex generator.
func IsForexPair(pair string) bool {
	_, ok := forexBase[pair]
	return ok
}

// BaseForexRate returns the table rate a pair's random walk is centred on.
func BaseForexRate(pair string) (decimal.Decimal, bool) {
	b, ok := forexBase[pair]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(b.rate), true
}

// ForexGenerator produces synthetic rates perturbed around the base table.
type ForexGenerator struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewForexGenerator(seed uint64) *ForexGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &ForexGenerator{rand: rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))}
}

// Tick returns a fresh quote for every pair.
func (g *ForexGenerator) Tick() map[string]models.ForexQuote {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]models.ForexQuote, len(forexBase))
	for _, pair := range ForexPairs() {
		b := forexBase[pair]
		base := decimal.RequireFromString(b.rate)
		move := decimal.NewFromFloat((g.rand.Float64() - 0.5) * 2 * ForexVolatility)
		change := decimal.RequireFromString(b.change).Add(decimal.NewFromFloat((g.rand.Float64() - 0.5) * 0.1))
		out[pair] = models.ForexQuote{
			Pair:   pair,
			Rate:   base.Mul(decimal.NewFromInt(1).Add(move)).Round(5),
			Change: change.Round(2),
		}
	}
	return out
}
