package wandb

import "time"

// RunNode is the raw run shape returned by the tracking service. Timestamps
// are RFC3339 strings as delivered on the wire; conversion happens at the
// collector boundary.
type RunNode struct {
	Name        string   `json:"name"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	HeartbeatAt string   `json:"heartbeatAt"`
	State       string   `json:"state"`
	Tags        []string `json:"tags"`
	Host        string   `json:"host"`
	RunInfo     *RunInfo `json:"runInfo"`
	Config      string   `json:"config"` // JSON-encoded run configuration
}

type RunInfo struct {
	GPU      string `json:"gpu"`
	GPUCount int    `json:"gpuCount"`
}

// MetricSample is one system-metrics observation of a run, already reduced
// to the per-GPU utilization and memory readings this pipeline cares about.
type MetricSample struct {
	Timestamp      time.Time
	GPUUtilization []float64 // percent, one entry per device
	GPUMemory      []float64 // percent, one entry per device
}

type runEdge struct {
	Cursor string  `json:"cursor"`
	Node   RunNode `json:"node"`
}

type projectEdge struct {
	Cursor string `json:"cursor"`
	Node   struct {
		Name string `json:"name"`
	} `json:"node"`
}

type pageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type runsResponse struct {
	Data struct {
		Project *struct {
			Runs struct {
				Edges []runEdge `json:"edges"`
			} `json:"runs"`
		} `json:"project"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type projectsResponse struct {
	Data struct {
		Models *struct {
			Edges    []projectEdge `json:"edges"`
			PageInfo pageInfo      `json:"pageInfo"`
		} `json:"models"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type historyResponse struct {
	Data struct {
		Project *struct {
			Run *struct {
				History []string `json:"history"`
			} `json:"run"`
		} `json:"project"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}
