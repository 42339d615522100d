// Package leaderboard keeps the best scores of finished games in a key-value
// store under a single namespace key.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"go.uber.org/zap"
)

const (
	DefaultNamespace  = "titans_leaderboard"
	DefaultMaxEntries = 10
	DefaultName       = "Player"

	dateLayout = "2006-01-02"
)

// Entry is one leaderboard line.
type Entry struct {
	PlayerName  string `json:"playerName"`
	PlayerColor string `json:"playerColor"`
	Score       int    `json:"score"`
	Date        string `json:"date"`
}

// Options configures a Leaderboard. Zero values select the defaults.
type Options struct {
	Namespace  string
	MaxEntries int
}

// Leaderboard ranks entries by score, highest first. Equal scores keep the
// order they were added in.
//
// Storage problems never reach callers that only read: a missing, corrupt or
// unreachable record is logged and treated as an empty leaderboard.
type Leaderboard struct {
	store     Store
	namespace string
	max       int
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

// New returns a leaderboard persisted in store.
func New(store Store, opts Options, logger *zap.Logger) *Leaderboard {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Leaderboard{
		store:     store,
		namespace: opts.Namespace,
		max:       opts.MaxEntries,
		logger:    logger,
		now:       time.Now,
	}
}

// MaxEntries returns the capacity of the board.
func (l *Leaderboard) MaxEntries() int {
	return l.max
}

// Top returns up to n entries, best first. n <= 0 returns all of them.
func (l *Leaderboard) Top(ctx context.Context, n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load(ctx)
	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

// IsHighScore reports whether score would make it onto the board.
func (l *Leaderboard) IsHighScore(ctx context.Context, score int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load(ctx)
	if len(entries) < l.max {
		return true
	}
	return score > entries[len(entries)-1].Score
}

// Add records a score and reports whether it survived trimming to the
// maximum size. An empty name is replaced with DefaultName.
func (l *Leaderboard) Add(ctx context.Context, name, color string, score int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if name == "" {
		name = DefaultName
	}
	entry := Entry{
		PlayerName:  name,
		PlayerColor: color,
		Score:       score,
		Date:        l.now().Format(dateLayout),
	}

	current := l.load(ctx)
	ranked := rankIndexed(append(current, entry))
	if len(ranked) > l.max {
		ranked = ranked[:l.max]
	}
	kept := false
	out := make([]Entry, 0, len(ranked))
	for _, r := range ranked {
		if r.seq == len(current) {
			kept = true
		}
		out = append(out, r.entry)
	}

	if err := l.save(ctx, out); err != nil {
		return false, err
	}
	l.logger.Info("leaderboard entry added",
		zap.String("player_name", name),
		zap.String("player_color", color),
		zap.Int("score", score),
		zap.Bool("ranked", kept),
	)
	return kept, nil
}

// Clear removes every entry.
func (l *Leaderboard) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.save(ctx, []Entry{}); err != nil {
		return err
	}
	l.logger.Info("leaderboard cleared", zap.String("namespace", l.namespace))
	return nil
}

// Import ranks entries into the board and trims it to the maximum size.
// With replace set the current entries are dropped first. Entries without a
// name get DefaultName and entries without a date get today's. It returns
// how many of the imported entries were kept.
func (l *Leaderboard) Import(ctx context.Context, entries []Entry, replace bool) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var merged []Entry
	if !replace {
		merged = l.load(ctx)
	}
	existing := len(merged)
	today := l.now().Format(dateLayout)
	for _, e := range entries {
		if e.PlayerName == "" {
			e.PlayerName = DefaultName
		}
		if e.Date == "" {
			e.Date = today
		}
		merged = append(merged, e)
	}

	ranked := rankIndexed(merged)
	if len(ranked) > l.max {
		ranked = ranked[:l.max]
	}
	kept := 0
	out := make([]Entry, 0, len(ranked))
	for _, r := range ranked {
		if r.seq >= existing {
			kept++
		}
		out = append(out, r.entry)
	}

	if err := l.save(ctx, out); err != nil {
		return 0, err
	}
	l.logger.Info("leaderboard imported",
		zap.String("namespace", l.namespace),
		zap.Int("offered", len(entries)),
		zap.Int("kept", kept),
		zap.Bool("replace", replace),
	)
	return kept, nil
}

func (l *Leaderboard) load(ctx context.Context) []Entry {
	data, err := l.store.Get(ctx, l.namespace)
	if errors.Is(err, ErrNotFound) {
		return []Entry{}
	}
	if err != nil {
		l.logger.Error("failed to load leaderboard", zap.String("namespace", l.namespace), zap.Error(err))
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Error("discarding corrupt leaderboard", zap.String("namespace", l.namespace), zap.Error(err))
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

func (l *Leaderboard) save(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := l.store.Put(ctx, l.namespace, data); err != nil {
		l.logger.Error("failed to save leaderboard", zap.String("namespace", l.namespace), zap.Error(err))
		return err
	}
	return nil
}

// rankKey orders by score descending, then by arrival.
type rankKey struct {
	score int
	seq   int
}

func compareRank(a, b interface{}) int {
	x, y := a.(rankKey), b.(rankKey)
	switch {
	case x.score > y.score:
		return -1
	case x.score < y.score:
		return 1
	case x.seq < y.seq:
		return -1
	case x.seq > y.seq:
		return 1
	}
	return 0
}

type rankedEntry struct {
	entry Entry
	seq   int
}

func rankIndexed(entries []Entry) []rankedEntry {
	tree := redblacktree.NewWith(compareRank)
	for i, e := range entries {
		tree.Put(rankKey{score: e.Score, seq: i}, e)
	}
	out := make([]rankedEntry, 0, tree.Size())
	it := tree.Iterator()
	for it.Next() {
		out = append(out, rankedEntry{entry: it.Value().(Entry), seq: it.Key().(rankKey).seq})
	}
	return out
}
