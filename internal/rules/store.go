package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NotFoundError reports a rule lookup that matched nothing.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no rule with id or name %q", e.Key)
}

// LoadIssue describes one rule entry skipped while loading the rule file.
type LoadIssue struct {
	Index int    // 1-based position in the file
	Rule  string // name or id when one could be read
	Err   error
}

// Store reads and writes the rule file. Rules persist as a JSON array.
// Writes go through a temp file and rename so an interrupted save never
// truncates the existing file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store over the given file path. The file need not
// exist yet.
func NewStore(path string) *Store {
	return &Store{path: path, logger: slog.Default()}
}

// WithLogger sets the logger used for load warnings.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Path returns the rule file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads all valid rules in file order. A missing file is an empty
// rule set. Individually malformed entries are skipped and reported as
// issues, so one bad rule never takes down the rest. Entries without an
// id get one assigned in memory; Add persists ids for rules it stores.
func (s *Store) Load() ([]Rule, []LoadIssue, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse rules file %s: %w", s.path, err)
	}

	seen := make(map[string]int)
	var out []Rule
	var issues []LoadIssue
	for i, entry := range raw {
		var r Rule
		if err := json.Unmarshal(entry, &r); err != nil {
			issues = append(issues, LoadIssue{Index: i + 1, Err: fmt.Errorf("parse rule: %w", err)})
			continue
		}
		if r.Conjunction == "" {
			r.Conjunction = ConjunctionAnd
		}
		if err := r.Validate(); err != nil {
			issues = append(issues, LoadIssue{Index: i + 1, Rule: nameOrID(&r), Err: err})
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
			s.logger.Debug("assigned id to rule without one", "rule", r.Name, "id", r.ID)
		}
		if prev, dup := seen[r.ID]; dup {
			issues = append(issues, LoadIssue{
				Index: i + 1,
				Rule:  nameOrID(&r),
				Err: &ValidationError{
					RuleID:   r.ID,
					RuleName: r.Name,
					Reason:   fmt.Sprintf("duplicate id, already used by rule #%d", prev),
				},
			})
			continue
		}
		seen[r.ID] = i + 1
		out = append(out, r)
	}

	if len(issues) > 0 {
		s.logger.Warn("skipped invalid rules while loading",
			"path", s.path, "valid", len(out), "skipped", len(issues))
	}
	return out, issues, nil
}

// Save writes the full rule set, replacing the file atomically.
func (s *Store) Save(all []Rule) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close rules file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}

// Add validates the rule, assigns an id if absent, rejects duplicate ids
// and names, and persists the grown set. Returns the rule as stored.
func (s *Store) Add(r Rule) (*Rule, error) {
	if r.Conjunction == "" {
		r.Conjunction = ConjunctionAnd
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	all, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, existing := range all {
		if strings.EqualFold(existing.Name, r.Name) {
			return nil, fmt.Errorf("a rule named %q already exists (id %s)", existing.Name, existing.ID)
		}
		if r.ID != "" && existing.ID == r.ID {
			return nil, fmt.Errorf("a rule with id %s already exists", r.ID)
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	all = append(all, r)
	if err := s.Save(all); err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes the rule whose id or name matches key and persists the
// shrunken set. Name matching is case-insensitive like Add's duplicate
// check. Returns the removed rule.
func (s *Store) Delete(key string) (*Rule, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("rule id or name required")
	}
	all, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i, r := range all {
		if r.ID == key || strings.EqualFold(r.Name, key) {
			removed := r
			all = append(all[:i], all[i+1:]...)
			if err := s.Save(all); err != nil {
				return nil, err
			}
			return &removed, nil
		}
	}
	return nil, &NotFoundError{Key: key}
}

// Get returns the rule whose id or name matches key.
func (s *Store) Get(key string) (*Rule, error) {
	all, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == key || strings.EqualFold(all[i].Name, key) {
			return &all[i], nil
		}
	}
	return nil, &NotFoundError{Key: key}
}

// Filter returns the rules whose id or name appears in keys, preserving
// file order. Every key must match something; unknown keys are an error
// so a typo never silently runs fewer rules than asked.
func Filter(all []Rule, keys []string) ([]Rule, error) {
	if len(keys) == 0 {
		return all, nil
	}
	matched := make(map[string]bool, len(keys))
	var out []Rule
	for _, r := range all {
		for _, key := range keys {
			if r.ID == key || strings.EqualFold(r.Name, key) {
				out = append(out, r)
				matched[key] = true
				break
			}
		}
	}
	var missing []string
	for _, key := range keys {
		if !matched[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Key: strings.Join(missing, ", ")}
	}
	return out, nil
}

func nameOrID(r *Rule) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
