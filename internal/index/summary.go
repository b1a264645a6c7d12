package index

import (
	"sort"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"
)

// Summary is what the index stores about one document.
type Summary struct {
	Title string
	Stats models.FlowStats
	Usage []models.NodeUsage
}

// Summarize decodes a flow document and counts its contents. Stats cover
// the top level; usage walks into groups and leaves group nodes out.
func Summarize(data []byte) (Summary, error) {
	g, err := flowdoc.Decode(data)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Title: g.Metadata.Title,
		Stats: models.FlowStats{Nodes: len(g.Nodes), Connections: len(g.Connections)},
	}
	counts := make(map[string]int)
	var walk func([]*graph.Node)
	walk = func(nodes []*graph.Node) {
		for _, n := range nodes {
			if n.IsGroup() {
				walk(n.Group().Nodes())
				continue
			}
			counts[n.TypeID]++
		}
	}
	for _, n := range g.Nodes {
		if n.IsGroup() {
			s.Stats.Groups++
		}
	}
	walk(g.Nodes)

	for id, c := range counts {
		s.Usage = append(s.Usage, models.NodeUsage{TypeID: id, Count: c})
	}
	sort.Slice(s.Usage, func(i, j int) bool { return s.Usage[i].TypeID < s.Usage[j].TypeID })
	return s, nil
}
