// ABOUTME: GraphViz rendering of a pipeline's stage chain
// ABOUTME: One node per stage labelled with its record count, edges in stage order
package viz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/harperreed/agencycrm/models"
)

// terminal stages end a record's journey and are drawn differently.
var terminal = map[string]bool{
	models.LeadWon:           true,
	models.LeadLost:          true,
	models.ClientChurned:     true,
	models.ApplicantHired:    true,
	models.ApplicantRejected: true,
}

// PipelineGraph renders stats as a DOT graph.
func PipelineGraph(ctx context.Context, entity models.EntityType, stats []StageStats) (string, error) {
	if !models.HasPipeline(entity) {
		return "", fmt.Errorf("%s has no pipeline", entity)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetLabel(fmt.Sprintf("%s pipeline", entity))
	graph.SetRankDir(cgraph.LRRank)

	var prev *cgraph.Node
	var prevStage string
	for _, s := range stats {
		node, err := graph.CreateNodeByName(s.Stage)
		if err != nil {
			return "", fmt.Errorf("failed to create stage node: %w", err)
		}

		label := fmt.Sprintf("%s\n%d", s.Stage, s.Count)
		if !s.Value.IsZero() {
			label += fmt.Sprintf("\n$%s", s.Value.StringFixed(0))
		}
		node.SetLabel(label)
		node.SetShape("box")
		node.SetStyle("filled")
		if terminal[s.Stage] {
			node.SetShape("doubleoctagon")
			node.SetFillColor("lightgrey")
		} else {
			node.SetFillColor("lightblue")
		}

		if prev != nil {
			if _, err := graph.CreateEdgeByName(prevStage+"_"+s.Stage, prev, node); err != nil {
				return "", fmt.Errorf("failed to create edge: %w", err)
			}
		}
		prev = node
		prevStage = s.Stage
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.String(), nil
}
