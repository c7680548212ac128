package wandb

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	imrocreq "github.com/imroc/req/v3"
)

const (
	requestTimeout = 60 * time.Second
	metricSamples  = 100
)

const runsQuery = `
query GetGpuInfoForProject($project: String!, $entity: String!, $first: Int!, $cursor: String!) {
    project(name: $project, entityName: $entity) {
        name
        runs(first: $first, after: $cursor) {
            edges {
                cursor
                node {
                    name
                    createdAt
                    updatedAt
                    heartbeatAt
                    state
                    tags
                    host
                    runInfo {
                        gpuCount
                        gpu
                    }
                    config
                }
            }
        }
    }
}`

const projectsQuery = `
query GetProjectsForEntity($entity: String!, $first: Int!, $cursor: String) {
    models(entityName: $entity, first: $first, after: $cursor) {
        edges {
            cursor
            node {
                name
            }
        }
        pageInfo {
            hasNextPage
        }
    }
}`

const historyQuery = `
query GetRunSystemMetrics($project: String!, $entity: String!, $run: String!, $samples: Int!) {
    project(name: $project, entityName: $entity) {
        run(name: $run) {
            history(samples: $samples, stream: "events")
        }
    }
}`

var gpuMetricKey = regexp.MustCompile(`^system\.gpu\.(\d+)\.(gpu|memory)$`)

type Client struct {
	req      *imrocreq.Client
	pageSize int
}

func NewClient(baseURL, apiKey string, pageSize int) *Client {
	c := imrocreq.C().
		SetBaseURL(baseURL).
		SetCommonBasicAuth("api", apiKey).
		SetTimeout(requestTimeout)
	return &Client{req: c, pageSize: pageSize}
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	resp, err := c.req.R().
		SetContext(ctx).
		SetBodyJsonMarshal(map[string]any{
			"query":     query,
			"variables": variables,
		}).
		Post("/graphql")
	if err != nil {
		return err
	}
	if resp.IsErrorState() {
		return fmt.Errorf("graphql request failed: %s", resp.Status)
	}
	return json.Unmarshal(resp.Bytes(), out)
}

func (c *Client) ListProjects(ctx context.Context, entity string) ([]string, error) {
	var names []string
	cursor := ""
	for {
		var result projectsResponse
		err := c.execute(ctx, projectsQuery, map[string]any{
			"entity": entity,
			"first":  c.pageSize,
			"cursor": cursor,
		}, &result)
		if err != nil {
			return nil, err
		}
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("list projects for %s: %s", entity, result.Errors[0].Message)
		}
		if result.Data.Models == nil {
			return nil, fmt.Errorf("list projects for %s: entity not found", entity)
		}
		for _, e := range result.Data.Models.Edges {
			names = append(names, e.Node.Name)
			cursor = e.Cursor
		}
		if !result.Data.Models.PageInfo.HasNextPage || len(result.Data.Models.Edges) == 0 {
			return names, nil
		}
	}
}

func (c *Client) QueryRunsPage(ctx context.Context, entity, project, cursor string) ([]RunNode, string, error) {
	var result runsResponse
	err := c.execute(ctx, runsQuery, map[string]any{
		"entity":  entity,
		"project": project,
		"first":   c.pageSize,
		"cursor":  cursor,
	}, &result)
	if err != nil {
		return nil, "", err
	}
	if len(result.Errors) > 0 {
		return nil, "", fmt.Errorf("query runs for %s/%s: %s", entity, project, result.Errors[0].Message)
	}
	if result.Data.Project == nil {
		return nil, "", fmt.Errorf("query runs for %s/%s: project not found", entity, project)
	}
	edges := result.Data.Project.Runs.Edges
	if len(edges) == 0 {
		return nil, "", nil
	}
	nodes := make([]RunNode, 0, len(edges))
	for _, e := range edges {
		nodes = append(nodes, e.Node)
	}
	return nodes, edges[len(edges)-1].Cursor, nil
}

func (c *Client) RunMetrics(ctx context.Context, entity, project, runID string) ([]MetricSample, error) {
	var result historyResponse
	err := c.execute(ctx, historyQuery, map[string]any{
		"entity":  entity,
		"project": project,
		"run":     runID,
		"samples": metricSamples,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("run metrics for %s/%s/%s: %s", entity, project, runID, result.Errors[0].Message)
	}
	if result.Data.Project == nil || result.Data.Project.Run == nil {
		return nil, fmt.Errorf("run metrics for %s/%s/%s: run not found", entity, project, runID)
	}
	samples := make([]MetricSample, 0, len(result.Data.Project.Run.History))
	for _, raw := range result.Data.Project.Run.History {
		sample, ok := parseHistoryRow(raw)
		if !ok {
			continue
		}
		samples = append(samples, sample)
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}

// parseHistoryRow reduces one raw events-stream row to its timestamp and the
// per-GPU utilization/memory readings. Rows without a timestamp or without
// any GPU metric are dropped.
func parseHistoryRow(raw string) (MetricSample, bool) {
	var row map[string]any
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return MetricSample{}, false
	}
	ts, ok := row["_timestamp"].(float64)
	if !ok {
		return MetricSample{}, false
	}

	util := map[int]float64{}
	mem := map[int]float64{}
	for key, value := range row {
		m := gpuMetricKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		v, ok := value.(float64)
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if m[2] == "gpu" {
			util[idx] = v
		} else {
			mem[idx] = v
		}
	}
	if len(util) == 0 && len(mem) == 0 {
		return MetricSample{}, false
	}

	sample := MetricSample{
		Timestamp:      time.Unix(int64(ts), int64((ts-float64(int64(ts)))*float64(time.Second))).UTC(),
		GPUUtilization: orderedValues(util),
		GPUMemory:      orderedValues(mem),
	}
	return sample, true
}

func orderedValues(byIndex map[int]float64) []float64 {
	if len(byIndex) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	values := make([]float64, 0, len(indexes))
	for _, i := range indexes {
		values = append(values, byIndex[i])
	}
	return values
}
