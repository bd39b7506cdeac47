package domain

import (
	"fmt"
	"sync"
)

// NodeID is the index of an entry node within its definition.
type NodeID int

type EntryNode struct {
	Name                string       `json:"name" yaml:"name"`
	CopyNr              int          `json:"copy_nr" yaml:"copy_nr"`
	Description         string       `json:"description,omitempty" yaml:"description,omitempty"`
	Evaluates           bool         `json:"evaluates" yaml:"evaluates"`
	IsStart             bool         `json:"is_start" yaml:"is_start"`
	IsDummy             bool         `json:"is_dummy" yaml:"is_dummy"`
	LaunchesInParallel  bool         `json:"launches_in_parallel" yaml:"launches_in_parallel"`
	ResetsErrorsOnEntry bool         `json:"resets_errors_on_entry" yaml:"resets_errors_on_entry"`
	Factory             EntryFactory `json:"-" yaml:"-"`
}

func (n EntryNode) Identity() string {
	return fmt.Sprintf("%s.%d", n.Name, n.CopyNr)
}

type Hop struct {
	From          NodeID `json:"from"`
	To            NodeID `json:"to"`
	Enabled       bool   `json:"enabled"`
	Unconditional bool   `json:"unconditional"`
	Evaluation    bool   `json:"evaluation"`
	Split         bool   `json:"split"`
}

// Taken reports whether the walk follows h after its source produced res.
func (h Hop) Taken(from EntryNode, res *Result) bool {
	if !h.Enabled {
		return false
	}
	if h.Unconditional {
		return true
	}
	return from.Evaluates && res != nil && h.Evaluation == res.Success
}

type ParameterDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Default     string `json:"default" yaml:"default"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type WorkflowDefinition struct {
	Name string

	mu         sync.RWMutex
	nodes      []EntryNode
	hops       []Hop
	outgoing   map[NodeID][]int
	identities map[string]NodeID
	parameters []ParameterDefinition
	sealed     bool
}

func NewWorkflowDefinition(name string) *WorkflowDefinition {
	return &WorkflowDefinition{
		Name:       name,
		outgoing:   make(map[NodeID][]int),
		identities: make(map[string]NodeID),
	}
}

func (d *WorkflowDefinition) AddNode(node EntryNode) (NodeID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return -1, NewValidationError("cannot add node", ErrDefinitionSealed, WithWorkflow(d.Name))
	}
	if node.Name == "" {
		return -1, NewValidationError("node name is required", ErrInvalidInput, WithWorkflow(d.Name))
	}
	if node.Factory == nil {
		return -1, NewValidationError("node factory is required", ErrMissingFactory,
			WithWorkflow(d.Name), WithEntry(node.Name, node.CopyNr))
	}
	if _, exists := d.identities[node.Identity()]; exists {
		return -1, NewValidationError("duplicate node "+node.Identity(), ErrDuplicateNode,
			WithWorkflow(d.Name), WithEntry(node.Name, node.CopyNr))
	}

	id := NodeID(len(d.nodes))
	d.nodes = append(d.nodes, node)
	d.identities[node.Identity()] = id
	return id, nil
}

func (d *WorkflowDefinition) AddHop(hop Hop) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return NewValidationError("cannot add hop", ErrDefinitionSealed, WithWorkflow(d.Name))
	}
	if !d.validID(hop.From) || !d.validID(hop.To) {
		return NewValidationError(fmt.Sprintf("hop %d->%d references unknown node", hop.From, hop.To), ErrUnknownNode,
			WithWorkflow(d.Name))
	}
	if hop.Enabled {
		for _, idx := range d.outgoing[hop.From] {
			existing := d.hops[idx]
			if existing.Enabled && existing.To == hop.To {
				return NewValidationError(fmt.Sprintf("duplicate enabled hop %s->%s",
					d.nodes[hop.From].Identity(), d.nodes[hop.To].Identity()), ErrDuplicateHop, WithWorkflow(d.Name))
			}
		}
	}

	d.hops = append(d.hops, hop)
	d.outgoing[hop.From] = append(d.outgoing[hop.From], len(d.hops)-1)
	return nil
}

// Connect adds an enabled hop; evaluation is only consulted when the source
// node evaluates and the hop is conditional.
func (d *WorkflowDefinition) Connect(from, to NodeID, unconditional, evaluation bool) error {
	return d.AddHop(Hop{From: from, To: to, Enabled: true, Unconditional: unconditional, Evaluation: evaluation})
}

func (d *WorkflowDefinition) DeclareParameter(name, defaultValue, description string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return NewValidationError("cannot declare parameter", ErrDefinitionSealed, WithWorkflow(d.Name))
	}
	for _, p := range d.parameters {
		if p.Name == name {
			return NewValidationError("duplicate parameter "+name, ErrInvalidInput, WithWorkflow(d.Name))
		}
	}
	d.parameters = append(d.parameters, ParameterDefinition{Name: name, Default: defaultValue, Description: description})
	return nil
}

func (d *WorkflowDefinition) Parameters() []ParameterDefinition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ParameterDefinition(nil), d.parameters...)
}

func (d *WorkflowDefinition) FindStart() (NodeID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	start := NodeID(-1)
	for i, node := range d.nodes {
		if !node.IsStart {
			continue
		}
		if start >= 0 {
			return -1, NewValidationError("multiple start entries defined", ErrMultipleStartEntries, WithWorkflow(d.Name))
		}
		start = NodeID(i)
	}
	if start < 0 {
		return -1, NewValidationError("no start entry defined", ErrNoStartEntry, WithWorkflow(d.Name))
	}
	return start, nil
}

// OutgoingHops returns the hops leaving id in declaration order.
func (d *WorkflowDefinition) OutgoingHops(id NodeID) []Hop {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexes := d.outgoing[id]
	hops := make([]Hop, 0, len(indexes))
	for _, idx := range indexes {
		hops = append(hops, d.hops[idx])
	}
	return hops
}

func (d *WorkflowDefinition) Hops() []Hop {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Hop(nil), d.hops...)
}

func (d *WorkflowDefinition) NodeByIdentity(name string, copyNr int) (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.identities[EntryNode{Name: name, CopyNr: copyNr}.Identity()]
	return id, ok
}

func (d *WorkflowDefinition) Node(id NodeID) (EntryNode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.validID(id) {
		return EntryNode{}, false
	}
	return d.nodes[id], true
}

func (d *WorkflowDefinition) MustNode(id NodeID) EntryNode {
	node, ok := d.Node(id)
	if !ok {
		panic(fmt.Sprintf("workflow %s has no node %d", d.Name, id))
	}
	return node
}

func (d *WorkflowDefinition) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// Seal freezes the definition. A run seals the definition it walks.
func (d *WorkflowDefinition) Seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

func (d *WorkflowDefinition) Sealed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sealed
}

func (d *WorkflowDefinition) Validate() error {
	if d.Len() == 0 {
		return NewValidationError("workflow has no entries", ErrNoStartEntry, WithWorkflow(d.Name))
	}
	_, err := d.FindStart()
	return err
}

func (d *WorkflowDefinition) validID(id NodeID) bool {
	return id >= 0 && int(id) < len(d.nodes)
}
