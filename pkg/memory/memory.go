// Package memory creates Memory records from photos and groups them on the
// shared map by H3 cell.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uber/h3-go/v4"

	"github.com/menta2k/geotag/pkg/types"
)

var (
	// ErrNotFound is returned when a memory does not exist
	ErrNotFound = errors.New("memory: not found")
	// ErrInvalid is returned for memories that fail validation
	ErrInvalid = errors.New("memory: invalid")
)

// DefaultResolution is the H3 resolution used for map grouping (~0.1 km² cells)
const DefaultResolution = 9

// Memory is a shared moment, optionally pinned to where its photo was taken
type Memory struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	PhotoID   string             `json:"photo_id"`
	Location  *types.Coordinates `json:"location,omitempty"`
	Cell      h3.Cell            `json:"cell,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// HasLocation reports whether the memory is pinned on the map
func (m Memory) HasLocation() bool {
	return m.Location != nil
}

// Locator finds where a photo was taken
type Locator interface {
	Extract(ctx context.Context, photoID string) (types.Coordinates, bool)
}

// Repository stores memories
type Repository interface {
	Save(ctx context.Context, m Memory) error
	Get(ctx context.Context, id string) (Memory, error)
	List(ctx context.Context) ([]Memory, error)
}

// Config holds memory service settings
type Config struct {
	Resolution int
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Resolution < 0 || c.Resolution > h3.MaxResolution {
		return fmt.Errorf("resolution must be between 0 and %d, got %d", h3.MaxResolution, c.Resolution)
	}
	return nil
}

// Cell returns the H3 cell containing c at the given resolution
func Cell(c types.Coordinates, resolution int) (h3.Cell, error) {
	return h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), resolution)
}

// Service creates memories from photos
type Service struct {
	locator Locator
	repo    Repository
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service with the default resolution
func NewService(locator Locator, repo Repository) *Service {
	s, _ := NewServiceWithConfig(locator, repo, Config{Resolution: DefaultResolution}, nil)
	return s
}

// NewServiceWithConfig creates a Service with custom configuration
func NewServiceWithConfig(locator Locator, repo Repository, config Config, logger *slog.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		locator: locator,
		repo:    repo,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// CreateFromPhoto stores a new memory for photoID. The memory is pinned when
// the photo carries a location and saved without one otherwise.
func (s *Service) CreateFromPhoto(ctx context.Context, title, photoID string) (Memory, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Memory{}, fmt.Errorf("empty title: %w", ErrInvalid)
	}
	if photoID == "" {
		return Memory{}, fmt.Errorf("empty photo id: %w", ErrInvalid)
	}

	m := Memory{
		ID:        uuid.NewString(),
		Title:     title,
		PhotoID:   photoID,
		CreatedAt: s.now().UTC(),
	}
	if coords, ok := s.locator.Extract(ctx, photoID); ok {
		cell, err := Cell(coords, s.config.Resolution)
		if err != nil {
			s.logger.Warn("failed to index memory location", "photo_id", photoID, "error", err)
		} else {
			m.Location = &coords
			m.Cell = cell
		}
	}

	if err := s.repo.Save(ctx, m); err != nil {
		return Memory{}, fmt.Errorf("failed to save memory: %w", err)
	}
	s.logger.Info("memory created", "id", m.ID, "photo_id", photoID, "located", m.HasLocation())
	return m, nil
}

// Nearby returns pinned memories within k H3 rings of c
func (s *Service) Nearby(ctx context.Context, c types.Coordinates, k int) ([]Memory, error) {
	if k < 0 {
		return nil, fmt.Errorf("negative ring count %d: %w", k, ErrInvalid)
	}
	origin, err := Cell(c, s.config.Resolution)
	if err != nil {
		return nil, fmt.Errorf("error converting %s to h3 cell: %w", c, err)
	}
	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, fmt.Errorf("error computing grid disk: %w", err)
	}
	cells := make(map[h3.Cell]struct{}, len(disk))
	for _, cell := range disk {
		cells[cell] = struct{}{}
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Memory
	for _, m := range all {
		if !m.HasLocation() {
			continue
		}
		if _, ok := cells[m.Cell]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// InMemoryRepository keeps memories in a map. It is safe for concurrent use.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Memory
}

// NewInMemoryRepository creates an empty repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]Memory)}
}

func (r *InMemoryRepository) Save(_ context.Context, m Memory) error {
	if m.ID == "" {
		return fmt.Errorf("memory without id: %w", ErrInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = m
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return Memory{}, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return m, nil
}

// List returns all memories, oldest first
func (r *InMemoryRepository) List(_ context.Context) ([]Memory, error) {
	r.mu.RLock()
	out := make([]Memory, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
