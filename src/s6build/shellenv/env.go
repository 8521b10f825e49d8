// Package shellenv implements the build variable store shared by the
// platform settings and the build pipelines. Variables carry a
// provenance comment, first writes win, and exports are sorted so the
// engine invocation stays deterministic.
package shellenv

import (
	"sort"
	"strings"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
)

// BuildAllPrefix marks variables forwarded to the engine as -D defines
// regardless of the active build target.
const BuildAllPrefix = "BLD_*_"

// Value is a single build variable with its provenance comment.
type Value struct {
	Name    string
	Value   string
	Comment string
}

// Store holds build variables with set-once semantics.
type Store struct {
	log    *logs.Logger
	values map[string]Value
}

// NewStore creates an empty build variable store.
func NewStore(log *logs.Logger) *Store {
	return &Store{
		log:    log,
		values: make(map[string]Value),
	}
}

// SetValue records a variable unless one with the same name already
// exists. The first write wins; shadowed writes are logged at debug
// level and dropped. It returns true when the value was stored.
func (s *Store) SetValue(name, value, comment string) bool {
	if existing, ok := s.values[name]; ok {
		if existing.Value != value {
			s.log.Debug("Build variable already set, keeping original",
				"name", name, "kept", existing.Value, "dropped", value, "source", comment)
		}
		return false
	}
	s.values[name] = Value{Name: name, Value: value, Comment: comment}
	return true
}

// SetValueForce records a variable regardless of an existing value.
// The pipelines use it to normalize values the set-once rule would
// otherwise preserve verbatim, such as the uppercased build target.
func (s *Store) SetValueForce(name, value, comment string) {
	s.values[name] = Value{Name: name, Value: value, Comment: comment}
}

// Has reports whether a variable with the given name is set.
func (s *Store) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// GetValue returns the value for name, or the empty string when unset.
func (s *Store) GetValue(name string) string {
	return s.values[name].Value
}

// GetValueOrDefault returns the value for name, or fallback when unset.
func (s *Store) GetValueOrDefault(name, fallback string) string {
	if v, ok := s.values[name]; ok {
		return v.Value
	}
	return fallback
}

// LoadDefines parses positional NAME=VALUE arguments into the store.
// Values set this way carry a command line provenance comment so later
// platform defaults cannot override them.
func (s *Store) LoadDefines(args []string) error {
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return errors.ErrMalformedDefine.WithMessagef("build variable must use NAME=VALUE form, got %q", arg)
		}
		s.SetValue(name, value, "Command Line Argument")
	}
	return nil
}

// Values returns all stored variables sorted by name.
func (s *Store) Values() []Value {
	out := make([]Value, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Environ returns all variables as sorted NAME=VALUE strings, suitable
// for appending to the environment of an engine child process.
func (s *Store) Environ() []string {
	out := make([]string, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v.Name+"="+v.Value)
	}
	sort.Strings(out)
	return out
}

// Defines returns the -D definitions for the given build target as
// sorted NAME=VALUE strings with their store prefix stripped. A
// variable named BLD_*_X applies to every target, BLD_DEBUG_X only to
// the DEBUG target.
func (s *Store) Defines(target string) []string {
	targetPrefix := "BLD_" + target + "_"
	out := make([]string, 0, len(s.values))
	for name, v := range s.values {
		switch {
		case strings.HasPrefix(name, BuildAllPrefix):
			out = append(out, strings.TrimPrefix(name, BuildAllPrefix)+"="+v.Value)
		case strings.HasPrefix(name, targetPrefix):
			out = append(out, strings.TrimPrefix(name, targetPrefix)+"="+v.Value)
		}
	}
	sort.Strings(out)
	return out
}
