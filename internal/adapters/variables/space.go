package variables

import (
	"strings"
	"sync"

	"github.com/eleven-am/jobgraph/internal/domain"
)

const (
	InternalWorkflowName = "Internal.Workflow.Name"
	InternalRunID        = "Internal.Run.ID"
	InternalParentRunID  = "Internal.Parent.Run.ID"
)

// Space is a thread-safe variable scope. Lookups fall through to the parent;
// writes stay local.
type Space struct {
	mu     sync.RWMutex
	parent domain.Variables
	values map[string]string
}

func NewSpace(parent domain.Variables) *Space {
	return &Space{
		parent: parent,
		values: make(map[string]string),
	}
}

func FromMap(values map[string]string) *Space {
	space := NewSpace(nil)
	for k, v := range values {
		space.values[k] = v
	}
	return space
}

func (s *Space) SetParent(parent domain.Variables) {
	s.mu.Lock()
	s.parent = parent
	s.mu.Unlock()
}

func (s *Space) Get(name string) (string, bool) {
	s.mu.RLock()
	value, ok := s.values[name]
	parent := s.parent
	s.mu.RUnlock()

	if ok {
		return value, true
	}
	if parent != nil {
		return parent.Get(name)
	}
	return "", false
}

func (s *Space) Set(name, value string) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

func (s *Space) SetAll(values map[string]string) {
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.mu.Unlock()
}

// InitializeFrom copies every variable visible in source into s.
func (s *Space) InitializeFrom(source domain.Variables) {
	if source == nil {
		return
	}
	s.SetAll(source.Snapshot())
}

func (s *Space) Snapshot() map[string]string {
	var snapshot map[string]string

	s.mu.RLock()
	parent := s.parent
	s.mu.RUnlock()

	if parent != nil {
		snapshot = parent.Snapshot()
	} else {
		snapshot = make(map[string]string)
	}

	s.mu.RLock()
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.RUnlock()
	return snapshot
}

// Substitute resolves ${NAME} and %%NAME%% references. Unknown references
// are left untouched.
func (s *Space) Substitute(text string) string {
	if !strings.Contains(text, "${") && !strings.Contains(text, "%%") {
		return text
	}
	text = s.expand(text, "${", "}")
	return s.expand(text, "%%", "%%")
}

func (s *Space) expand(text, open, close string) string {
	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, open)
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(open):], close)
		if end < 0 {
			b.WriteString(rest)
			break
		}

		name := rest[start+len(open) : start+len(open)+end]
		b.WriteString(rest[:start])
		if value, ok := s.Get(name); ok && name != "" {
			b.WriteString(value)
		} else {
			b.WriteString(rest[start : start+len(open)+end+len(close)])
		}
		rest = rest[start+len(open)+end+len(close):]
	}
	return b.String()
}
