// Package library owns the per-user saved tracks and playlists, persisted
// locally as one record per user.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thecrate/internal/core"
)

const bloomFalsePositiveRate = 0.001

// ErrEmptyPlaylistName reports a playlist create with a blank name.
var ErrEmptyPlaylistName = errors.New("playlist name must not be empty")

// ErrLibraryFull reports an add beyond the configured track capacity.
var ErrLibraryFull = errors.New("library track capacity reached")

// ErrNotLoaded reports a mutation before any user record was loaded.
var ErrNotLoaded = errors.New("no library record loaded")

// Store is the single source of truth for saved-track membership. It holds
// one user's record in memory and writes the whole record back after every
// mutation. A failed write is reported but does not roll the in-memory
// record back, so the session stays usable without persistence.
type Store struct {
	db     *DB
	logger *zap.Logger

	mu     sync.RWMutex
	userID string
	record core.LibraryRecord
	index  *membershipIndex
}

func NewStore(db *DB, config *core.LibraryConfig, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		index:  newMembershipIndex(config.MaxTracks, bloomFalsePositiveRate),
	}
}

// Load reads the record for a user and replaces the in-memory state. A user
// without a persisted record starts from an empty one.
func (s *Store) Load(ctx context.Context, userID string) error {
	record, err := s.db.LoadRecord(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = userID
	s.record = *record
	s.index.Reset()
	for _, track := range s.record.Tracks {
		if track.ID != "" {
			s.index.Add(track.ID)
		}
	}

	s.logger.Info("Library loaded",
		zap.String("userID", userID),
		zap.Int("tracks", len(s.record.Tracks)),
		zap.Int("playlists", len(s.record.Playlists)))
	return nil
}

// AddTrack ensures a track is saved. Adding an already-saved identifier is
// a success that changes nothing.
func (s *Store) AddTrack(ctx context.Context, track core.Track) error {
	if track.ID == "" {
		return fmt.Errorf("track without identifier cannot be saved")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return ErrNotLoaded
	}
	if s.index.Has(track.ID) {
		return nil
	}
	if s.index.Size() >= s.index.capacity {
		return ErrLibraryFull
	}

	if track.SavedAt.IsZero() {
		track.SavedAt = time.Now().UTC()
	}
	s.record.Tracks = append(s.record.Tracks, track)
	s.index.Add(track.ID)

	return s.persist(ctx)
}

// RemoveTrack removes a track by identifier. Removing an absent identifier
// is a no-op success.
func (s *Store) RemoveTrack(ctx context.Context, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return ErrNotLoaded
	}
	if !s.index.Has(trackID) {
		return nil
	}

	kept := s.record.Tracks[:0]
	for _, track := range s.record.Tracks {
		if track.ID != trackID {
			kept = append(kept, track)
		}
	}
	s.record.Tracks = kept
	s.index.Remove(trackID)

	return s.persist(ctx)
}

// IsSaved answers membership for a track identifier.
func (s *Store) IsSaved(trackID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Has(trackID)
}

// SavedTracks returns a copy of the saved tracks in insertion order.
func (s *Store) SavedTracks() []core.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks := make([]core.Track, len(s.record.Tracks))
	copy(tracks, s.record.Tracks)
	return tracks
}

// Playlists returns a copy of the playlist collection.
func (s *Store) Playlists() []core.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlists := make([]core.Playlist, len(s.record.Playlists))
	copy(playlists, s.record.Playlists)
	return playlists
}

// CreatePlaylist appends a new empty playlist with a generated identifier.
func (s *Store) CreatePlaylist(ctx context.Context, name string) (core.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Playlist{}, ErrEmptyPlaylistName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return core.Playlist{}, ErrNotLoaded
	}

	playlist := core.Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		Tracks:    []core.Track{},
		CreatedAt: time.Now().UTC(),
	}
	s.record.Playlists = append(s.record.Playlists, playlist)

	if err := s.persist(ctx); err != nil {
		return playlist, err
	}
	return playlist, nil
}

// Reset drops the in-memory record on logout. Persisted records are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = ""
	s.record = core.LibraryRecord{}
	s.index.Reset()
}

// persist writes the whole record. Caller holds the write lock. The
// in-memory mutation stands even when the write fails.
func (s *Store) persist(ctx context.Context) error {
	s.record.LastUpdated = time.Now().UTC()

	if err := s.db.SaveRecord(ctx, s.userID, &s.record); err != nil {
		s.logger.Warn("Library record write failed, keeping in-memory state",
			zap.String("userID", s.userID),
			zap.Error(err))
		return err
	}
	return nil
}
