package wandb

import "context"

// Interface is the paginated query surface of the run tracking service.
// An empty edge list from QueryRunsPage signals the end of pagination.
type Interface interface {
	// ListProjects returns all project names of an entity (team).
	ListProjects(ctx context.Context, entity string) ([]string, error)
	// QueryRunsPage returns one page of runs plus the cursor for the next
	// page. Callers keep requesting until a page comes back empty.
	QueryRunsPage(ctx context.Context, entity, project, cursor string) ([]RunNode, string, error)
	// RunMetrics returns the sampled system metrics stream of a run.
	RunMetrics(ctx context.Context, entity, project, runID string) ([]MetricSample, error)
}
