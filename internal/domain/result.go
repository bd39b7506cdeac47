package domain

import "strings"

// Row is a single structured record carried between entries.
type Row map[string]interface{}

// Result is the value threaded through a run. Every entry receives a clone of
// its predecessor's result and returns its own.
type Result struct {
	Success       bool                   `json:"success"`
	Errors        int64                  `json:"errors"`
	Stopped       bool                   `json:"stopped"`
	ExitStatus    int                    `json:"exit_status"`
	EntryNr       int                    `json:"entry_nr"`
	LinesRead     int64                  `json:"lines_read"`
	LinesWritten  int64                  `json:"lines_written"`
	LinesRejected int64                  `json:"lines_rejected"`
	Rows          []Row                  `json:"rows,omitempty"`
	Files         []string               `json:"files,omitempty"`
	LogText       string                 `json:"log_text,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

func NewResult() *Result {
	return &Result{}
}

func NewSuccessResult() *Result {
	return &Result{Success: true}
}

// StoppedResult is returned by a walk step that observed the stop flag.
func StoppedResult(entryNr int) *Result {
	return &Result{Stopped: true, EntryNr: entryNr}
}

func (r *Result) Clone() *Result {
	if r == nil {
		return NewResult()
	}

	clone := *r
	if r.Rows != nil {
		clone.Rows = make([]Row, len(r.Rows))
		for i, row := range r.Rows {
			clone.Rows[i] = Row(deepCopyMap(row))
		}
	}
	if r.Files != nil {
		clone.Files = append([]string(nil), r.Files...)
	}
	if r.Payload != nil {
		clone.Payload = deepCopyMap(r.Payload)
	}
	return &clone
}

// Fail marks the result unsuccessful and sets the error count.
func (r *Result) Fail(errors int64) *Result {
	r.Success = false
	r.Errors = errors
	return r
}

func (r *Result) ResetErrors() {
	r.Errors = 0
}

func (r *Result) AddFile(path string) {
	for _, existing := range r.Files {
		if existing == path {
			return
		}
	}
	r.Files = append(r.Files, path)
}

func (r *Result) AppendLog(text string) {
	if text == "" {
		return
	}
	if r.LogText == "" {
		r.LogText = text
		return
	}
	r.LogText = strings.TrimRight(r.LogText, "\n") + "\n" + text
}

func (r *Result) SetPayload(key string, value interface{}) {
	if r.Payload == nil {
		r.Payload = make(map[string]interface{})
	}
	r.Payload[key] = value
}

// Merge folds a branch result into r: counters are summed, rows and files
// appended, payloads merged with the branch winning on conflicts. Success is
// the conjunction of both and any error forces failure.
func (r *Result) Merge(other *Result) error {
	if other == nil {
		return nil
	}

	r.Errors += other.Errors
	r.LinesRead += other.LinesRead
	r.LinesWritten += other.LinesWritten
	r.LinesRejected += other.LinesRejected
	r.Success = r.Success && other.Success
	r.Stopped = r.Stopped || other.Stopped
	if other.ExitStatus != 0 {
		r.ExitStatus = other.ExitStatus
	}

	for _, row := range other.Rows {
		r.Rows = append(r.Rows, Row(deepCopyMap(row)))
	}
	for _, file := range other.Files {
		r.AddFile(file)
	}
	r.AppendLog(other.LogText)

	if len(other.Payload) > 0 {
		merged, err := MergePayloads(r.Payload, other.Payload)
		if err != nil {
			return err
		}
		r.Payload = merged
	}

	if r.Errors > 0 {
		r.Success = false
	}
	return nil
}
