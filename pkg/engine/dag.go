package engine

import (
	"fmt"
	"sort"
	"strings"
)

// GraphNode is a plan step placed in the execution graph.
type GraphNode struct {
	// ID is the step key.
	ID string `json:"id"`

	// Step is the plan step.
	Step Step `json:"step"`

	// Index is the position of the step in the plan.
	Index int `json:"index"`

	// Level is the execution level. Steps on the same level may run in parallel.
	Level int `json:"level"`

	// Dependencies are the steps that must complete first.
	Dependencies []string `json:"dependencies"`

	// Dependents are the steps waiting on this one.
	Dependents []string `json:"dependents"`
}

// GraphEdge is a prerequisite relation between two steps.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ExecutionGraph is the DAG of an action plan.
type ExecutionGraph struct {
	Nodes  map[string]*GraphNode `json:"nodes"`
	Edges  []GraphEdge           `json:"edges"`
	Roots  []string              `json:"roots"`
	Levels [][]string            `json:"levels"`
	Depth  int                   `json:"depth"`
}

// DAGBuilder builds an execution graph from plan steps.
// A node step and its component step are linked in the order the plan emits
// them, so creation runs parent first and destruction runs children first.
// A tenant network step waits for every component and node step of its
// tenant emitted before it.
type DAGBuilder struct {
	// steps maps step keys to their plan position
	steps map[string]int

	// order holds step keys in plan order
	order []string

	// plan is the plan being built
	plan []Step

	// adjacencyList maps step keys to their dependents
	adjacencyList map[string][]string

	// reverseAdjacencyList maps step keys to their dependencies
	reverseAdjacencyList map[string][]string

	// inDegree tracks the number of incoming edges for each step
	inDegree map[string]int

	// levels maps execution level to step keys at that level
	levels [][]string
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		steps:                make(map[string]int),
		order:                make([]string, 0),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
		levels:               make([][]string, 0),
	}
}

// BuildGraph builds the execution graph of a plan.
func BuildGraph(plan *ActionPlan) (*ExecutionGraph, error) {
	if plan == nil {
		return nil, NewValidationError("plan is nil", nil)
	}
	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(plan.Steps)
	if err != nil {
		return nil, err
	}
	if err := builder.ValidateGraph(graph); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}
	return graph, nil
}

// BuildGraph constructs an execution graph from plan steps and computes
// execution levels.
func (b *DAGBuilder) BuildGraph(steps []Step) (*ExecutionGraph, error) {
	if len(steps) == 0 {
		return &ExecutionGraph{
			Nodes:  make(map[string]*GraphNode),
			Edges:  make([]GraphEdge, 0),
			Roots:  make([]string, 0),
			Levels: make([][]string, 0),
			Depth:  0,
		}, nil
	}

	if err := b.initialize(steps); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildExecutionGraph(), nil
}

// initialize indexes the steps, links each node to its component and each
// tenant network to the component steps before it.
func (b *DAGBuilder) initialize(steps []Step) error {
	b.plan = steps

	for i, step := range steps {
		key := step.Key()
		if len(step.FQN) == 0 {
			return NewValidationError("plan step has empty fqn", nil)
		}
		if _, exists := b.steps[key]; exists {
			return NewValidationError(fmt.Sprintf("duplicate plan step: %s", key), nil).
				WithResource(step.FQN.String())
		}

		b.steps[key] = i
		b.order = append(b.order, key)
		b.adjacencyList[key] = make([]string, 0)
		b.reverseAdjacencyList[key] = make([]string, 0)
		b.inDegree[key] = 0
	}

	for i, step := range steps {
		if step.Type != EntityNode {
			continue
		}
		parentKey := string(EntityInternalComponent) + ":" + step.FQN.Parent().String()
		j, ok := b.steps[parentKey]
		if !ok {
			continue
		}

		// The step emitted first must complete first.
		from, to := parentKey, step.Key()
		if i < j {
			from, to = to, from
		}
		b.addEdge(from, to)
	}

	for i, step := range steps {
		if step.Type != EntityNetwork || step.FQN.Depth() != 3 {
			continue
		}
		tenant := step.FQN.Parent()
		for _, prev := range steps[:i] {
			if prev.Type != EntityInternalComponent && prev.Type != EntityNode {
				continue
			}
			if prev.FQN.HasPrefix(tenant) {
				b.addEdge(prev.Key(), step.Key())
			}
		}
	}

	return nil
}

func (b *DAGBuilder) addEdge(from, to string) {
	b.adjacencyList[from] = append(b.adjacencyList[from], to)
	b.reverseAdjacencyList[to] = append(b.reverseAdjacencyList[to], from)
	b.inDegree[to]++
}

// computeLevels assigns execution levels using Kahn's algorithm. Steps within
// a level keep their plan order.
func (b *DAGBuilder) computeLevels() error {
	inDegreeCopy := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegreeCopy[id] = degree
	}

	currentLevel := make([]string, 0)
	for _, id := range b.order {
		if inDegreeCopy[id] == 0 {
			currentLevel = append(currentLevel, id)
		}
	}

	processedCount := 0
	for len(currentLevel) > 0 {
		b.sortByPlanOrder(currentLevel)
		b.levels = append(b.levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, id := range currentLevel {
			for _, dependent := range b.adjacencyList[id] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}

		currentLevel = nextLevel
	}

	if processedCount != len(b.steps) {
		return NewPermanentError("failed to process all plan steps - possible cycle", nil).
			WithCode(ErrCodeInternal)
	}

	return nil
}

func (b *DAGBuilder) sortByPlanOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return b.steps[ids[i]] < b.steps[ids[j]]
	})
}

func (b *DAGBuilder) buildExecutionGraph() *ExecutionGraph {
	graph := &ExecutionGraph{
		Nodes:  make(map[string]*GraphNode),
		Edges:  make([]GraphEdge, 0),
		Roots:  make([]string, 0),
		Levels: b.levels,
		Depth:  len(b.levels),
	}

	for level, ids := range b.levels {
		for _, id := range ids {
			idx := b.steps[id]
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Step:         b.plan[idx],
				Index:        idx,
				Level:        level,
				Dependencies: b.reverseAdjacencyList[id],
				Dependents:   b.adjacencyList[id],
			}

			if level == 0 {
				graph.Roots = append(graph.Roots, id)
			}
		}
	}

	for _, from := range b.order {
		for _, to := range b.adjacencyList[from] {
			graph.Edges = append(graph.Edges, GraphEdge{From: from, To: to})
		}
	}

	return graph
}

// GetLevels returns the computed execution levels.
func (b *DAGBuilder) GetLevels() [][]string {
	return b.levels
}

// ToDOT generates a Graphviz DOT representation of the DAG.
func (b *DAGBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph ExecutionGraph {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, id := range ids {
			step := b.plan[b.steps[id]]
			label := fmt.Sprintf("%s\\n%s", step.FQN, step.Operation)
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				id, label, getOperationColor(step.Operation)))
		}

		sb.WriteString("  }\n\n")
	}

	for _, from := range b.order {
		for _, to := range b.adjacencyList[from] {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", from, to))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func getOperationColor(op OperationType) string {
	switch op {
	case OperationCreate:
		return "lightgreen"
	case OperationUpdate:
		return "lightblue"
	case OperationDelete:
		return "lightcoral"
	case OperationNoop:
		return "lightgray"
	default:
		return "white"
	}
}

// ValidateGraph performs additional validation on the built graph.
func (b *DAGBuilder) ValidateGraph(graph *ExecutionGraph) error {
	if len(graph.Nodes) != len(b.steps) {
		return NewPermanentError("graph node count mismatch", nil).
			WithCode(ErrCodeInternal)
	}

	for _, edge := range graph.Edges {
		if _, exists := graph.Nodes[edge.From]; !exists {
			return NewPermanentError(fmt.Sprintf("edge references non-existent node: %s", edge.From), nil).
				WithCode(ErrCodeInternal)
		}
		if _, exists := graph.Nodes[edge.To]; !exists {
			return NewPermanentError(fmt.Sprintf("edge references non-existent node: %s", edge.To), nil).
				WithCode(ErrCodeInternal)
		}
	}

	for _, rootID := range graph.Roots {
		if len(graph.Nodes[rootID].Dependencies) > 0 {
			return NewPermanentError(fmt.Sprintf("root node %s has dependencies", rootID), nil).
				WithCode(ErrCodeInternal)
		}
	}

	return nil
}
