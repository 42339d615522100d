package game

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Autoplay speeds.
const (
	SpeedSlow   = 2000 * time.Millisecond
	SpeedNormal = 1000 * time.Millisecond
	SpeedFast   = 500 * time.Millisecond
)

var (
	ErrUnknownSpeed  = errors.New("unknown replay speed")
	ErrReplayCorrupt = errors.New("replay file is corrupt")
)

// ParseSpeed maps "slow", "normal" and "fast" to an autoplay interval.
func ParseSpeed(name string) (time.Duration, error) {
	switch name {
	case "slow":
		return SpeedSlow, nil
	case "normal", "":
		return SpeedNormal, nil
	case "fast":
		return SpeedFast, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpeed, name)
	}
}

// Replay steps through a captured sequence of positions. It owns its own copies
// and never touches the session it came from.
type Replay struct {
	GameID string

	mu      sync.Mutex
	states  []*GameState
	current int
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReplay copies states and positions the replay on the first one.
func NewReplay(gameID string, states []*GameState) *Replay {
	r := &Replay{
		GameID: gameID,
		states: make([]*GameState, len(states)),
	}
	for i, st := range states {
		r.states[i] = st.Clone()
	}
	return r
}

// Size returns the number of positions.
func (r *Replay) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// TotalSteps is the index of the last position.
func (r *Replay) TotalSteps() int {
	return r.Size() - 1
}

// CurrentIndex returns the position being shown.
func (r *Replay) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Current returns a copy of the position being shown, nil for an empty replay.
func (r *Replay) Current() *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateAt(r.current)
}

// GetStateAt returns a copy of position i, nil when out of range.
func (r *Replay) GetStateAt(i int) *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateAt(i)
}

func (r *Replay) stateAt(i int) *GameState {
	if i < 0 || i >= len(r.states) {
		return nil
	}
	return r.states[i].Clone()
}

// JumpTo shows position i, clamped to the recorded range.
func (r *Replay) JumpTo(i int) *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jump(i)
}

func (r *Replay) jump(i int) *GameState {
	if len(r.states) == 0 {
		return nil
	}
	if i < 0 {
		i = 0
	}
	if i > len(r.states)-1 {
		i = len(r.states) - 1
	}
	r.current = i
	return r.states[i].Clone()
}

// Next advances one position; at the end it stays put.
func (r *Replay) Next() *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jump(r.current + 1)
}

// Previous steps back one position; at the start it stays put.
func (r *Replay) Previous() *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jump(r.current - 1)
}

// First shows the initial position.
func (r *Replay) First() *GameState {
	return r.JumpTo(0)
}

// Last shows the final position.
func (r *Replay) Last() *GameState {
	return r.JumpTo(r.TotalSteps())
}

// AtEnd reports whether the last position is shown.
func (r *Replay) AtEnd() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current >= len(r.states)-1
}

// Autoplay advances one position per interval until the end or until ctx is
// cancelled. Started at the end, it rewinds to the first position. onStep, if
// set, sees every position shown.
func (r *Replay) Autoplay(ctx context.Context, interval time.Duration, onStep func(int, *GameState)) error {
	if interval <= 0 {
		interval = SpeedNormal
	}
	if r.AtEnd() {
		st := r.First()
		if onStep != nil && st != nil {
			onStep(0, st)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.mu.Lock()
			if r.current >= len(r.states)-1 {
				r.mu.Unlock()
				return nil
			}
			st := r.jump(r.current + 1)
			idx := r.current
			r.mu.Unlock()

			if onStep != nil {
				onStep(idx, st)
			}
		}
	}
}

// StartAutoplay runs Autoplay in the background, replacing any autoplay
// already running.
func (r *Replay) StartAutoplay(interval time.Duration, onStep func(int, *GameState)) {
	r.StopAutoplay()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		_ = r.Autoplay(ctx, interval, onStep)
	}()
}

// StopAutoplay cancels background autoplay and waits for it to finish.
func (r *Replay) StopAutoplay() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Playing reports whether background autoplay is still running.
func (r *Replay) Playing() bool {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// replayMetadata heads a saved replay file.
type replayMetadata struct {
	GameID     string
	Timestamp  time.Time
	Version    int
	StateCount int
	Checksums  []string
}

// SaveToFile writes the replay to <directory>/<game id>.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.Lock()
	states := make([]*GameState, len(r.states))
	copy(states, r.states)
	r.mu.Unlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	metadata := replayMetadata{
		GameID:     r.GameID,
		Timestamp:  time.Now(),
		Version:    1,
		StateCount: len(states),
		Checksums:  make([]string, len(states)),
	}
	for i, st := range states {
		sum, err := st.ComputeChecksum()
		if err != nil {
			return fmt.Errorf("failed to checksum state %d: %w", i, err)
		}
		metadata.Checksums[i] = sum.Hash
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", r.GameID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, st := range states {
		if err := encoder.Encode(st); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile and verifies every
// position against its recorded checksum.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", gameID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplayCorrupt, err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrReplayCorrupt, err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := &Replay{GameID: metadata.GameID}
	for i := 0; i < metadata.StateCount; i++ {
		var st GameState
		if err := decoder.Decode(&st); err != nil {
			return nil, fmt.Errorf("%w: state %d: %v", ErrReplayCorrupt, i, err)
		}
		st.normalize()
		sum, err := st.ComputeChecksum()
		if err != nil {
			return nil, err
		}
		if i < len(metadata.Checksums) && sum.Hash != metadata.Checksums[i] {
			return nil, fmt.Errorf("%w: checksum mismatch at state %d", ErrReplayCorrupt, i)
		}
		replay.states = append(replay.states, &st)
	}
	return replay, nil
}

// ReplayArchive saves finished games to a directory.
type ReplayArchive struct {
	logger *zap.Logger
	dir    string
}

// NewReplayArchive returns an archive rooted at dir.
func NewReplayArchive(dir string, logger *zap.Logger) *ReplayArchive {
	return &ReplayArchive{logger: logger, dir: dir}
}

// Save writes the session's full history to disk.
func (a *ReplayArchive) Save(s *Session) error {
	replay := NewReplay(s.ID, s.ReplaySteps())
	if err := replay.SaveToFile(a.dir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	if a.logger != nil {
		a.logger.Info("saved replay to disk",
			zap.String("game_id", s.ID),
			zap.Int("state_count", replay.Size()),
			zap.String("directory", a.dir),
		)
	}
	return nil
}

// Load reads a saved replay.
func (a *ReplayArchive) Load(gameID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(a.dir, gameID)
	if err != nil {
		return nil, err
	}
	if a.logger != nil {
		a.logger.Info("loaded replay from disk",
			zap.String("game_id", gameID),
			zap.Int("state_count", replay.Size()),
		)
	}
	return replay, nil
}
