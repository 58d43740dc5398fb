package content

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrUnknownGame is returned when no catalog is loaded for a game id.
var ErrUnknownGame = errors.New("unknown game")

// Provider supplies the catalog of a game.
type Provider interface {
	Catalog(ctx context.Context, gameID string) (*Catalog, error)
}

// GameSummary describes a loaded game for listings.
type GameSummary struct {
	GameID     string   `json:"game_id"`
	Title      string   `json:"title"`
	Kind       string   `json:"kind"`
	Items      int      `json:"items"`
	Categories []string `json:"categories"`
}

// catalogFile is the on-disk YAML layout of one game.
type catalogFile struct {
	GameID string `yaml:"game_id"`
	Title  string `yaml:"title"`
	Items  []Item `yaml:"items"`
}

// Loader reads game catalogs from YAML files and serves them by game id.
type Loader struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
	logger   zerolog.Logger
	seed     int64
}

var _ Provider = (*Loader)(nil)

// NewLoader creates an empty loader. seed 0 uses the clock.
func NewLoader(logger zerolog.Logger, seed int64) *Loader {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Loader{
		catalogs: make(map[string]*Catalog),
		logger:   logger.With().Str("component", "content_loader").Logger(),
		seed:     seed,
	}
}

// LoadFromDir loads every *.yaml / *.yml file in dir. A broken file fails the whole load.
func (l *Loader) LoadFromDir(dir string) error {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			return err
		}
	}

	l.logger.Info().Str("dir", dir).Int("games", len(files)).Msg("catalogs loaded")
	return nil
}

// LoadFromFile parses and registers a single catalog file.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", path, err)
	}
	return l.LoadBytes(data)
}

// LoadBytes parses one catalog document.
func (l *Loader) LoadBytes(data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rng := rand.New(rand.NewSource(l.seed + int64(len(l.catalogs))))
	cat, err := NewCatalog(file.GameID, file.Title, file.Items, rng)
	if err != nil {
		return err
	}
	l.catalogs[cat.GameID()] = cat

	l.logger.Debug().
		Str("game_id", cat.GameID()).
		Int("items", cat.Len()).
		Msg("catalog registered")
	return nil
}

// Catalog returns the catalog registered for gameID.
func (l *Loader) Catalog(_ context.Context, gameID string) (*Catalog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cat, ok := l.catalogs[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
	}
	return cat, nil
}

// Games lists every loaded game sorted by id.
func (l *Loader) Games() []GameSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]GameSummary, 0, len(l.catalogs))
	for _, cat := range l.catalogs {
		kind := ""
		if len(cat.items) > 0 {
			kind = string(cat.items[0].Kind())
		}
		out = append(out, GameSummary{
			GameID:     cat.GameID(),
			Title:      cat.Title(),
			Kind:       kind,
			Items:      cat.Len(),
			Categories: cat.Categories(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// GameIDs lists the ids of every loaded game, sorted.
func (l *Loader) GameIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.catalogs))
	for id := range l.catalogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
