package engine

import (
	"log/slog"

	"github.com/eleven-am/jobgraph/internal/domain"
)

type entryScope struct {
	job    *Job
	node   domain.EntryNode
	logger *slog.Logger
}

func (j *Job) newScope(node domain.EntryNode) *entryScope {
	return &entryScope{
		job:    j,
		node:   node,
		logger: j.logger.With("entry", node.Name, "copy_nr", node.CopyNr),
	}
}

func (s *entryScope) RunID() string { return s.job.id }
func (s *entryScope) WorkflowName() string { return s.job.definition.Name }
func (s *entryScope) EntryName() string { return s.node.Name }
func (s *entryScope) CopyNr() int { return s.node.CopyNr }
func (s *entryScope) IsStopped() bool { return s.job.IsStopped() }
func (s *entryScope) Variables() domain.Variables { return s.job.variables }
func (s *entryScope) Logger() *slog.Logger { return s.logger }

// JobFromScope returns the run behind a scope handed out by this engine.
func JobFromScope(scope domain.Scope) (*Job, bool) {
	s, ok := scope.(*entryScope)
	if !ok {
		return nil, false
	}
	return s.job, true
}
