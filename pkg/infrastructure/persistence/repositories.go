// Package persistence provides repository implementations backed by the
// filesystem. These are the infrastructure adapters for the domain
// repository interfaces: jobs live as one JSON file per job, the rule list
// as a single YAML file rewritten atomically on every mutation.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/greybell/butler/pkg/domain"
	ruledomain "github.com/greybell/butler/pkg/domain/rule"
	scheduledomain "github.com/greybell/butler/pkg/domain/schedule"
)

// ---------------------------------------------------------------------------
// Generic JSON file store
// ---------------------------------------------------------------------------

// JSONStore provides generic JSON file-based persistence for any
// serializable type. It keeps an in-memory cache and persists to disk on
// every Put/Remove.
type JSONStore[T any] struct {
	baseDir string
	items   map[domain.EntityID]*T
	mu      sync.RWMutex
}

// NewJSONStore creates a new file-backed store.
func NewJSONStore[T any](baseDir string) *JSONStore[T] {
	os.MkdirAll(baseDir, 0755)
	return &JSONStore[T]{
		baseDir: baseDir,
		items:   make(map[domain.EntityID]*T),
	}
}

// Load reads all JSON files from the base directory into memory.
func (s *JSONStore[T]) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}

		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			continue
		}

		// Use filename (without .json) as ID
		id := domain.EntityID(entry.Name()[:len(entry.Name())-5])
		s.items[id] = &item
	}

	return nil
}

// Get retrieves an item by ID.
func (s *JSONStore[T]) Get(id domain.EntityID) (*T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	return item, ok
}

// Put saves an item to memory and disk.
func (s *JSONStore[T]) Put(id domain.EntityID, item *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id] = item

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	path := filepath.Join(s.baseDir, string(id)+".json")
	return writeFileAtomic(path, data)
}

// Remove deletes an item from memory and disk.
func (s *JSONStore[T]) Remove(id domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}

	delete(s.items, id)
	os.Remove(filepath.Join(s.baseDir, string(id)+".json"))
	return true
}

// All returns all items.
func (s *JSONStore[T]) All() []*T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*T, 0, len(s.items))
	for _, item := range s.items {
		result = append(result, item)
	}
	return result
}

// Count returns the number of stored items.
func (s *JSONStore[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// writeFileAtomic writes via a temp file and rename, so a crash mid-write
// never leaves a truncated record behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Job repository implementation
// ---------------------------------------------------------------------------

// JobRepository is the filesystem-backed implementation of
// schedule.Repository: one JSON file per job under <workDir>/jobs.
type JobRepository struct {
	store *JSONStore[scheduledomain.Job]
}

// NewJobRepository creates a job repository rooted at workDir.
func NewJobRepository(workDir string) *JobRepository {
	store := NewJSONStore[scheduledomain.Job](filepath.Join(workDir, "jobs"))
	store.Load()
	return &JobRepository{store: store}
}

func (r *JobRepository) FindByID(id domain.EntityID) (*scheduledomain.Job, error) {
	job, ok := r.store.Get(id)
	if !ok {
		return nil, scheduledomain.ErrJobNotFound
	}
	return job, nil
}

func (r *JobRepository) FindAll() ([]*scheduledomain.Job, error) {
	return r.store.All(), nil
}

func (r *JobRepository) Save(job *scheduledomain.Job) error {
	return r.store.Put(job.JobID, job)
}

func (r *JobRepository) Delete(id domain.EntityID) error {
	if !r.store.Remove(id) {
		return scheduledomain.ErrJobNotFound
	}
	return nil
}

// Compile-time verification
var _ scheduledomain.Repository = (*JobRepository)(nil)

// ---------------------------------------------------------------------------
// Rule repository implementation
// ---------------------------------------------------------------------------

// rulesFileName holds the full rule list inside the work directory.
const rulesFileName = "rules.yaml"

// RuleRepository is the filesystem-backed implementation of
// rule.Repository. The whole list lives in one YAML file, rewritten
// atomically on every SaveAll.
type RuleRepository struct {
	path string
	mu   sync.Mutex
}

// NewRuleRepository creates a rule repository rooted at workDir.
func NewRuleRepository(workDir string) *RuleRepository {
	os.MkdirAll(workDir, 0755)
	return &RuleRepository{path: filepath.Join(workDir, rulesFileName)}
}

func (r *RuleRepository) LoadAll() ([]*ruledomain.TriggerRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var rules []*ruledomain.TriggerRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return rules, nil
}

func (r *RuleRepository) SaveAll(rules []*ruledomain.TriggerRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rules == nil {
		rules = []*ruledomain.TriggerRule{}
	}
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	return writeFileAtomic(r.path, data)
}

// Compile-time verification
var _ ruledomain.Repository = (*RuleRepository)(nil)
