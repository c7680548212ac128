package tracker

import (
	"encoding/json"
	"strconv"

	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/wandb"
)

// GPUCountResolver derives the effective GPU count of a run. Teams without a
// rule use the device count reported by the run. Teams with a rule report
// device counts per process, so the count is reconstructed from the run
// configuration instead: node count * GPUs per node.
type GPUCountResolver struct {
	rules map[string]config.GPUCountRule
}

func NewGPUCountResolver(rules []config.GPUCountRule) *GPUCountResolver {
	byTeam := make(map[string]config.GPUCountRule, len(rules))
	for _, r := range rules {
		byTeam[r.Team] = r
	}
	return &GPUCountResolver{rules: byTeam}
}

// Resolve never fails: any extraction problem falls back to the reported
// device count with a warning.
func (g *GPUCountResolver) Resolve(team string, node *wandb.RunNode) int {
	reported := 0
	if node.RunInfo != nil {
		reported = node.RunInfo.GPUCount
	}
	rule, ok := g.rules[team]
	if !ok {
		return reported
	}

	runConfig := map[string]any{}
	if err := json.Unmarshal([]byte(node.Config), &runConfig); err != nil {
		klog.Warningf("GPU count for %s/%s: cannot parse run config, using reported count %d: %v",
			team, node.Name, reported, err)
		return reported
	}

	nodes := 0
	for _, key := range rule.NodeKeys {
		if v := configValue(runConfig, key); v != 0 {
			nodes = v
			break
		}
	}
	if nodes == 0 {
		klog.Warningf("GPU count for %s/%s: no node count in run config, using reported count %d",
			team, node.Name, reported)
		return reported
	}

	gpusPerNode := rule.GPUsPerNode
	if gpusPerNode == 0 && rule.GPUsPerNodeKey != "" {
		gpusPerNode = configValue(runConfig, rule.GPUsPerNodeKey)
	}
	if gpusPerNode == 0 {
		gpusPerNode = 1
	}

	return nodes * gpusPerNode
}

// configValue reads the integer under config[key]["value"]. Run configs wrap
// every entry in a {"value": ...} object; values may arrive as numbers or
// numeric strings. Absent or unconvertible values count as 0.
func configValue(runConfig map[string]any, key string) int {
	entry, ok := runConfig[key].(map[string]any)
	if !ok {
		return 0
	}
	switch v := entry["value"].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			klog.Warningf("GPU count: cannot convert %q under key %q to int, using 0", v, key)
			return 0
		}
		return n
	default:
		return 0
	}
}
