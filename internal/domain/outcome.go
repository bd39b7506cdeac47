package domain

import "time"

type OutcomePhase string

const (
	PhaseRunStarted    OutcomePhase = "run_started"
	PhaseEntryStarted  OutcomePhase = "entry_started"
	PhaseEntryFinished OutcomePhase = "entry_finished"
	PhaseRunFinished   OutcomePhase = "run_finished"
)

// EntryOutcome is an immutable history record appended by the tracker.
type EntryOutcome struct {
	RunID     string        `json:"run_id"`
	Sequence  int64         `json:"sequence"`
	Workflow  string        `json:"workflow"`
	EntryName string        `json:"entry_name,omitempty"`
	CopyNr    int           `json:"copy_nr"`
	Phase     OutcomePhase  `json:"phase"`
	Comment   string        `json:"comment,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Result    Result        `json:"result"`
	Duration  time.Duration `json:"duration"`
	LoggedAt  time.Time     `json:"logged_at"`
}

func NewEntryOutcome(runID, workflow string, node EntryNode, phase OutcomePhase, res *Result) EntryOutcome {
	outcome := EntryOutcome{
		RunID:     runID,
		Workflow:  workflow,
		EntryName: node.Name,
		CopyNr:    node.CopyNr,
		Phase:     phase,
		LoggedAt:  time.Now(),
	}
	if res != nil {
		outcome.Result = *res.Clone()
	}
	return outcome
}

func (o EntryOutcome) IsEntryCompletion() bool {
	return o.Phase == PhaseEntryFinished
}

// RunSummary is the persisted summary of a finished run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Workflow   string        `json:"workflow"`
	Success    bool          `json:"success"`
	Errors     int64         `json:"errors"`
	Stopped    bool          `json:"stopped"`
	Entries    int           `json:"entries"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}
