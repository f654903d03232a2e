package feed

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Family describes one feed endpoint and the events it carries.
type Family struct {
	Name      string
	URL       string
	Tags      []string // event tags the family's decoder accepts
	Subscribe []string // default subscription params
}

// registry maps family names to their descriptions
var registry = make(map[string]Family)

// Register adds a feed family; called from init().
func Register(f Family) {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	if name == "" {
		log.Warn().Msg("invalid feed family")
		return
	}
	if _, exists := registry[name]; exists {
		log.Warn().Str("family", name).Msg("feed family already registered, overwriting")
	}
	f.Name = name
	registry[name] = f
	log.Debug().Str("family", name).Msg("feed family registered")
}

// Lookup returns the registered family.
func Lookup(name string) (Family, bool) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Families lists registered family names in sorted order.
func Families() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	FamilyCrypto = "crypto"
	FamilyStocks = "stocks"
)

func init() {
	Register(Family{
		Name:      FamilyCrypto,
		URL:       "wss://socket.polygon.io/crypto",
		Tags:      []string{TagCryptoTrade},
		Subscribe: []string{"XT.*"},
	})
	Register(Family{
		Name:      FamilyStocks,
		URL:       "wss://delayed.polygon.io/stocks",
		Tags:      []string{TagStockTrade, TagStockAggregate},
		Subscribe: []string{"T.*"},
	})
}
