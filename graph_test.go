package routegraph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhatrans/routegraph/model"
)

func edge(from, to string, weight float64) *Edge {
	return &Edge{
		From:    from,
		To:      to,
		Segment: model.Segment{ID: from + "-" + to, RouteID: "r1", Kind: model.TransportKindBus},
		Weight:  weight,
	}
}

func virtualEdge(from, to string, weight float64) *Edge {
	e := edge(from, to, weight)
	e.Segment.RouteID = "virtual-route-" + from + "-" + to
	return e
}

func TestGraphAddEdgeRequiresNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "a", City: "якутск"})

	assert.Error(t, g.AddEdge(edge("a", "b", 10)))
	assert.Error(t, g.AddEdge(edge("b", "a", 10)))

	g.AddNode(&Node{ID: "b", City: "алдан"})
	require.NoError(t, g.AddEdge(edge("a", "b", 10)))
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
}

func TestGraphSynchronizeDropsDangling(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "a"})
	g.AddNode(&Node{ID: "b"})
	g.AddNode(&Node{ID: "c"})
	require.NoError(t, g.AddEdge(edge("a", "b", 10)))
	require.NoError(t, g.AddEdge(edge("b", "c", 10)))
	require.NoError(t, g.AddEdge(edge("c", "a", 10)))

	// Remove a node behind the graph's back.
	delete(g.Nodes, "c")

	removed := g.Synchronize()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, g.EdgeCount())
	require.NoError(t, g.Validate())
}

func TestGraphValidate(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "a"})
	g.AddNode(&Node{ID: "b"})
	require.NoError(t, g.AddEdge(edge("a", "b", 10)))
	require.NoError(t, g.Validate())

	// Non-positive weight fails validation and the audit.
	g.Adjacency["a"][0].Weight = 0
	assert.Error(t, g.Validate())
	assert.Error(t, g.AuditWeights())
	g.Adjacency["a"][0].Weight = 10

	// Node without adjacency entry.
	g.Nodes["ghost"] = &Node{ID: "ghost"}
	assert.Error(t, g.Validate())
	delete(g.Nodes, "ghost")

	// Adjacency key without node.
	g.Adjacency["phantom"] = []*Edge{}
	assert.Error(t, g.Validate())
	delete(g.Adjacency, "phantom")

	require.NoError(t, g.Validate())
}

func TestGraphValidateVirtualReciprocal(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "hub"})
	g.AddNode(&Node{ID: "virtual-stop-тикси"})

	require.NoError(t, g.AddEdge(virtualEdge("hub", "virtual-stop-тикси", 180)))
	assert.Error(t, g.Validate(), "one-way virtual edge must fail")

	require.NoError(t, g.AddEdge(virtualEdge("virtual-stop-тикси", "hub", 180)))
	require.NoError(t, g.Validate())
}

func TestGraphNodesInCityOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "virtual-stop-якутск", City: "якутск"})
	g.AddNode(&Node{ID: "stop-2", City: "якутск"})
	g.AddNode(&Node{ID: "stop-1", City: "якутск"})
	g.AddNode(&Node{ID: "stop-3", City: "алдан"})

	nodes := g.NodesInCity("якутск")
	require.Len(t, nodes, 3)
	assert.Equal(t, "stop-1", nodes[0].ID)
	assert.Equal(t, "stop-2", nodes[1].ID)
	assert.Equal(t, "virtual-stop-якутск", nodes[2].ID)

	assert.Empty(t, g.NodesInCity("тикси"))
}

func TestGraphJSONRoundtrip(t *testing.T) {
	g := NewGraph()
	lat := 62.03
	g.AddNode(&Node{ID: "a", Name: "Якутск", Lat: &lat, City: "якутск"})
	g.AddNode(&Node{ID: "b", City: "алдан"})
	require.NoError(t, g.AddEdge(edge("a", "b", 45)))
	g.Metadata = model.GraphMetadata{NodeCount: 2, EdgeCount: 1, DatasetVersion: "v1"}

	payload, err := json.Marshal(g)
	require.NoError(t, err)

	restored := NewGraph()
	require.NoError(t, json.Unmarshal(payload, restored))
	require.NoError(t, restored.Validate())
	assert.Equal(t, 2, restored.NodeCount())
	assert.Equal(t, 1, restored.EdgeCount())
	assert.Equal(t, 45.0, restored.OutEdges("a")[0].Weight)
}
