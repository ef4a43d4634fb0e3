package stats

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
)

const (
	// DefaultMaxDepth bounds both stage nesting and operator nesting.
	DefaultMaxDepth = 1000
	// DefaultMaxNodes bounds the total number of stages and operators mapped in one call.
	DefaultMaxNodes = 1000000

	// pathKeep is how many leading and trailing segments a rendered error path keeps.
	pathKeep = 8
)

// Limits bounds a single mapping call. Zero fields fall back to the defaults.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// Mapper copies SDK stage and plan-node trees into StageNode and PlanNode
// values. A Mapper holds no state between calls and may be shared.
type Mapper struct {
	maxDepth int
	maxNodes int
}

// NewMapper returns a Mapper enforcing the given limits.
func NewMapper(limits Limits) *Mapper {
	m := &Mapper{maxDepth: limits.MaxDepth, maxNodes: limits.MaxNodes}
	if m.maxDepth <= 0 {
		m.maxDepth = DefaultMaxDepth
	}
	if m.maxNodes <= 0 {
		m.maxNodes = DefaultMaxNodes
	}
	return m
}

var defaultMapper = NewMapper(Limits{})

// MapPlanNode maps an SDK plan node and all of its descendants with the default limits.
func MapPlanNode(node *athena.QueryStagePlanNode) (PlanNode, error) {
	return defaultMapper.MapPlanNode(node)
}

// MapStage maps an SDK stage, its plan and all of its sub-stages with the default limits.
func MapStage(stage *athena.QueryStage) (StageNode, error) {
	return defaultMapper.MapStage(stage)
}

// MapPlanNode maps node and all of its descendants, preserving child order.
func (m *Mapper) MapPlanNode(node *athena.QueryStagePlanNode) (PlanNode, error) {
	if node == nil {
		return PlanNode{}, &MalformedTreeError{Path: "plan", Reason: "nil plan node"}
	}
	w := &treeWalk{Mapper: m}
	p, err := w.plan(node, 1)
	if err != nil {
		return PlanNode{}, finish("plan", err)
	}
	return p, nil
}

// MapStage maps stage, its plan and its sub-stages, preserving sub-stage order.
func (m *Mapper) MapStage(stage *athena.QueryStage) (StageNode, error) {
	if stage == nil {
		return StageNode{}, &MalformedTreeError{Path: "stage", Reason: "nil stage"}
	}
	w := &treeWalk{Mapper: m}
	s, err := w.stage(stage, 1)
	if err != nil {
		return StageNode{}, finish("stage", err)
	}
	return s, nil
}

// treeWalk carries the node budget of one mapping call.
type treeWalk struct {
	*Mapper
	nodes int
}

func (w *treeWalk) visit(depth int, kind string) error {
	if depth > w.maxDepth {
		return &MalformedTreeError{Reason: fmt.Sprintf("%s depth exceeds %d", kind, w.maxDepth)}
	}
	w.nodes++
	if w.nodes > w.maxNodes {
		return &MalformedTreeError{Reason: fmt.Sprintf("tree exceeds %d nodes", w.maxNodes)}
	}
	return nil
}

func (w *treeWalk) stage(s *athena.QueryStage, depth int) (StageNode, error) {
	if err := w.visit(depth, "stage"); err != nil {
		return StageNode{}, err
	}

	out := StageNode{
		StageID:         aws.Int64Value(s.StageId),
		State:           aws.StringValue(s.State),
		InputRows:       aws.Int64Value(s.InputRows),
		InputBytes:      aws.Int64Value(s.InputBytes),
		OutputRows:      aws.Int64Value(s.OutputRows),
		OutputBytes:     aws.Int64Value(s.OutputBytes),
		ExecutionTimeMs: aws.Int64Value(s.ExecutionTime),
		SubStages:       make([]StageNode, 0, len(s.SubStages)),
	}

	if s.QueryStagePlan != nil {
		plan, err := w.plan(s.QueryStagePlan, 1)
		if err != nil {
			return StageNode{}, at(".plan", err)
		}
		out.Plan = &plan
	}

	for i, sub := range s.SubStages {
		seg := fmt.Sprintf(".sub[%d]", i)
		if sub == nil {
			return StageNode{}, &MalformedTreeError{Reason: "nil stage", segments: []string{seg}}
		}
		mapped, err := w.stage(sub, depth+1)
		if err != nil {
			return StageNode{}, at(seg, err)
		}
		out.SubStages = append(out.SubStages, mapped)
	}

	return out, nil
}

func (w *treeWalk) plan(n *athena.QueryStagePlanNode, depth int) (PlanNode, error) {
	if err := w.visit(depth, "plan"); err != nil {
		return PlanNode{}, err
	}

	out := PlanNode{
		Name:       aws.StringValue(n.Name),
		Identifier: aws.StringValue(n.Identifier),
		Children:   make([]PlanNode, 0, len(n.Children)),
	}
	if n.RemoteSources != nil {
		out.RemoteSources = aws.StringValueSlice(n.RemoteSources)
	}

	// An absent list and an empty list both describe a leaf.
	for i, child := range n.Children {
		seg := fmt.Sprintf("[%d]", i)
		if child == nil {
			return PlanNode{}, &MalformedTreeError{Reason: "nil plan node", segments: []string{seg}}
		}
		mapped, err := w.plan(child, depth+1)
		if err != nil {
			return PlanNode{}, at(seg, err)
		}
		out.Children = append(out.Children, mapped)
	}

	return out, nil
}

// at records the path segment of a MalformedTreeError while it unwinds.
func at(segment string, err error) error {
	if mte, ok := err.(*MalformedTreeError); ok {
		mte.segments = append(mte.segments, segment)
	}
	return err
}

// finish renders the collected segments under root. Paths longer than
// 2*pathKeep segments keep both ends and report how many were elided.
func finish(root string, err error) error {
	mte, ok := err.(*MalformedTreeError)
	if !ok {
		return err
	}

	n := len(mte.segments)
	var b strings.Builder
	b.WriteString(root)
	for i := n - 1; i >= 0; i-- {
		if n > 2*pathKeep && i == n-1-pathKeep {
			fmt.Fprintf(&b, "...%d more...", n-2*pathKeep)
			i = pathKeep - 1
		}
		b.WriteString(mte.segments[i])
	}

	mte.Path = b.String()
	mte.Depth = n
	mte.segments = nil
	return err
}
