// Package memory is an in-process implementation of every store collaborator.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/store"
)

// Store keeps everything in maps guarded by a single lock.
// Stored vectors are shared with callers and must be treated as immutable.
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]records.JobRecord
	helpers    map[string]records.HelperRecord
	vectors    map[string]*features.Vector
	decisions  []records.Decision
	retraining map[string]records.RetrainingRequest
}

var (
	_ store.JobStore        = (*Store)(nil)
	_ store.HelperStore     = (*Store)(nil)
	_ store.FeatureStore    = (*Store)(nil)
	_ store.DecisionStore   = (*Store)(nil)
	_ store.RetrainingStore = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		jobs:       make(map[string]records.JobRecord),
		helpers:    make(map[string]records.HelperRecord),
		vectors:    make(map[string]*features.Vector),
		retraining: make(map[string]records.RetrainingRequest),
	}
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	newID    = uuid.NewString
)

// Seed is the layout of a seed file. Jobs and helpers are raw documents.
type Seed struct {
	Jobs      []map[string]any   `json:"jobs"`
	Helpers   []map[string]any   `json:"helpers"`
	Decisions []records.Decision `json:"decisions"`
}

// ParseSeed decodes a seed document. YAML is accepted for ".yaml" and ".yml"
// extensions, JSON otherwise.
func ParseSeed(data []byte, ext string) (Seed, error) {
	var seed Seed
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Seed{}, err
		}
		// Re-encode so decisions go through their JSON tags.
		raw, err := json.Marshal(doc)
		if err != nil {
			return Seed{}, err
		}
		data = raw
	}
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, err
	}

	for i := range seed.Decisions {
		d := &seed.Decisions[i]
		if err := validate.Struct(d); err != nil {
			return Seed{}, fmt.Errorf("decision #%d: %w", i, err)
		}
		// Seeded decisions are keyed by id in durable stores.
		if d.ID == "" {
			d.ID = newID()
		}
	}
	return seed, nil
}

// ReadSeed reads and decodes a seed file.
func ReadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("reading seed file %q: %w", path, err)
	}

	seed, err := ParseSeed(data, filepath.Ext(path))
	if err != nil {
		return Seed{}, fmt.Errorf("parsing seed file %q: %w", path, err)
	}
	return seed, nil
}

// Load creates a store populated from a JSON or YAML seed file.
func Load(path string) (*Store, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}

	s := New()
	for i, raw := range seed.Jobs {
		job, err := records.DecodeJob(raw)
		if err != nil {
			return nil, fmt.Errorf("job #%d: %w", i, err)
		}
		s.AddJob(job)
	}
	for i, raw := range seed.Helpers {
		helper, err := records.DecodeHelper(raw)
		if err != nil {
			return nil, fmt.Errorf("helper #%d: %w", i, err)
		}
		s.AddHelper(helper)
	}
	s.decisions = append(s.decisions, seed.Decisions...)

	return s, nil
}

// AddJob inserts or replaces a job.
func (s *Store) AddJob(job records.JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// AddHelper inserts or replaces a helper.
func (s *Store) AddHelper(helper records.HelperRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.helpers[helper.ID] = helper
}

func (s *Store) GetJob(_ context.Context, jobID string) (records.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return records.JobRecord{}, fmt.Errorf("job %q: %w", jobID, store.ErrNotFound)
	}
	return job, nil
}

func (s *Store) GetHelper(_ context.Context, helperID string) (records.HelperRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	helper, ok := s.helpers[helperID]
	if !ok {
		return records.HelperRecord{}, fmt.Errorf("helper %q: %w", helperID, store.ErrNotFound)
	}
	return helper, nil
}

func (s *Store) QueryActiveRegisteredHelpers(_ context.Context, limit int) ([]records.HelperRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]records.HelperRecord, 0, len(s.helpers))
	for _, helper := range s.helpers {
		if helper.Eligible() {
			result = append(result, helper)
		}
	}
	slices.SortFunc(result, func(a, b records.HelperRecord) int { return cmp.Compare(a.ID, b.ID) })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetFeatures(_ context.Context, helperID string) (*features.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vectors[helperID]
	if !ok {
		return nil, fmt.Errorf("features of helper %q: %w", helperID, store.ErrNotFound)
	}
	return v, nil
}

func (s *Store) PutFeatures(_ context.Context, helperID string, v *features.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[helperID] = v
	return nil
}

func (s *Store) CountFeatures(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *Store) AppendDecision(_ context.Context, d records.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *Store) RecentByUser(_ context.Context, userID string, limit int) ([]records.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []records.Decision
	for _, d := range s.decisions {
		if d.ActingUserID == userID {
			result = append(result, d)
		}
	}
	slices.SortStableFunc(result, func(a, b records.Decision) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DistinctUsersSince(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range s.decisions {
		if !d.Timestamp.Before(since) {
			seen[d.ActingUserID] = struct{}{}
		}
	}

	users := make([]string, 0, len(seen))
	for user := range seen {
		users = append(users, user)
	}
	slices.Sort(users)
	return users, nil
}

func (s *Store) GetRetraining(_ context.Context, userID string) (records.RetrainingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.retraining[userID]
	if !ok {
		return records.RetrainingRequest{}, fmt.Errorf("retraining request of user %q: %w", userID, store.ErrNotFound)
	}
	return req, nil
}

func (s *Store) UpsertRetraining(_ context.Context, req records.RetrainingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retraining[req.UserID] = req
	return nil
}
