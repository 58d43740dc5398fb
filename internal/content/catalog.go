package content

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ErrCatalogExhausted is returned by Draw when every item has been excluded.
var ErrCatalogExhausted = errors.New("catalog exhausted")

// Catalog is the immutable item list of one game.
type Catalog struct {
	gameID     string
	title      string
	items      []Item
	categories []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCatalog validates items and builds a catalog. A nil rng is seeded from the clock.
func NewCatalog(gameID, title string, items []Item, rng *rand.Rand) (*Catalog, error) {
	if gameID == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	seen := make(map[string]struct{}, len(items))
	cats := make(map[string]struct{})
	copied := make([]Item, len(items))
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("game %s: %w", gameID, err)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("game %s: duplicate item id %q", gameID, it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Category != "" {
			cats[it.Category] = struct{}{}
		}
		copied[i] = it
	}

	categories := make([]string, 0, len(cats))
	for c := range cats {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return &Catalog{
		gameID:     gameID,
		title:      title,
		items:      copied,
		categories: categories,
		rng:        rng,
	}, nil
}

// GameID returns the game this catalog belongs to.
func (c *Catalog) GameID() string { return c.gameID }

// Title returns the display title of the game.
func (c *Catalog) Title() string { return c.title }

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Categories returns the sorted set of item categories.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Draw picks uniformly at random among items whose id is not in excluding.
func (c *Catalog) Draw(excluding map[string]struct{}) (Item, error) {
	candidates := make([]int, 0, len(c.items))
	for i, it := range c.items {
		if _, skip := excluding[it.ID]; !skip {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return Item{}, ErrCatalogExhausted
	}

	c.mu.Lock()
	pick := candidates[c.rng.Intn(len(candidates))]
	c.mu.Unlock()

	return c.items[pick], nil
}
