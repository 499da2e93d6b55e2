package runtime

import "github.com/aretw0/promptloom/pkg/domain"

// VariableStore resolves placeholder names for a single render.
// It is built once from the project variables and never mutated afterwards,
// so one store is shared by every node of the run.
type VariableStore struct {
	values     map[string]string
	duplicates []string
}

// NewVariableStore indexes vars by name. When a name repeats, the last
// variable wins and the name is reported by Duplicates.
func NewVariableStore(vars []domain.ProjectVariable) *VariableStore {
	s := &VariableStore{values: make(map[string]string, len(vars))}
	flagged := make(map[string]bool)
	for _, v := range vars {
		if _, exists := s.values[v.Name]; exists && !flagged[v.Name] {
			flagged[v.Name] = true
			s.duplicates = append(s.duplicates, v.Name)
		}
		s.values[v.Name] = v.Value
	}
	return s
}

// Resolve returns the value bound to name.
func (s *VariableStore) Resolve(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Duplicates lists names declared more than once, in the order the second
// declaration was seen.
func (s *VariableStore) Duplicates() []string {
	out := make([]string, len(s.duplicates))
	copy(out, s.duplicates)
	return out
}

// Len is the number of distinct names.
func (s *VariableStore) Len() int {
	return len(s.values)
}
