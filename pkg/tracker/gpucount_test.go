package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/wandb"
)

func runNode(gpuCount int, runConfig string) *wandb.RunNode {
	return &wandb.RunNode{
		Name:    "r1",
		Config:  runConfig,
		RunInfo: &wandb.RunInfo{GPU: "NVIDIA H100", GPUCount: gpuCount},
	}
}

func TestResolveWithoutRuleUsesReportedCount(t *testing.T) {
	g := NewGPUCountResolver(nil)
	assert.Equal(t, 8, g.Resolve("acme-nlp", runNode(8, "{}")))
}

func TestResolveAppliesRule(t *testing.T) {
	g := NewGPUCountResolver([]config.GPUCountRule{{
		Team:           "acme-nlp",
		NodeKeys:       []string{"num_nodes", "nnodes"},
		GPUsPerNodeKey: "gpus_per_node",
	}})

	// first key wins when present
	node := runNode(1, `{"num_nodes":{"value":4},"gpus_per_node":{"value":8}}`)
	assert.Equal(t, 32, g.Resolve("acme-nlp", node))

	// fallback key, value given as numeric string
	node = runNode(1, `{"nnodes":{"value":"2"},"gpus_per_node":{"value":8}}`)
	assert.Equal(t, 16, g.Resolve("acme-nlp", node))

	// no gpus-per-node information: one GPU per node
	node = runNode(1, `{"num_nodes":{"value":3}}`)
	assert.Equal(t, 3, g.Resolve("acme-nlp", node))
}

func TestResolveFixedGPUsPerNode(t *testing.T) {
	g := NewGPUCountResolver([]config.GPUCountRule{{
		Team:        "acme-cv",
		NodeKeys:    []string{"num_nodes"},
		GPUsPerNode: 8,
	}})
	node := runNode(1, `{"num_nodes":{"value":2}}`)
	assert.Equal(t, 16, g.Resolve("acme-cv", node))
}

func TestResolveFallsBackOnBadConfig(t *testing.T) {
	g := NewGPUCountResolver([]config.GPUCountRule{{
		Team:     "acme-nlp",
		NodeKeys: []string{"num_nodes"},
	}})

	// unparsable run config
	assert.Equal(t, 4, g.Resolve("acme-nlp", runNode(4, "not json")))
	// node count missing from run config
	assert.Equal(t, 4, g.Resolve("acme-nlp", runNode(4, `{}`)))
	// unconvertible value under the key
	assert.Equal(t, 4, g.Resolve("acme-nlp", runNode(4, `{"num_nodes":{"value":"many"}}`)))
}
