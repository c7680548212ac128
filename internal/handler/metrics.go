package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aicluster-lab/gpuboard/pkg/metrics"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMetricsMgr)
	promHTTPHandler = promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{Registry: metrics.Registry})
}

var promHTTPHandler http.Handler

type MetricsMgr struct {
	name string
}

func NewMetricsMgr(_ *RegisterConfig) Manager {
	return &MetricsMgr{
		name: "metrics",
	}
}

func (mgr *MetricsMgr) GetName() string { return mgr.name }

func (mgr *MetricsMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("", mgr.GetMetrics)
}

// GetMetrics exposes the pipeline's registry in Prometheus text format.
func (mgr *MetricsMgr) GetMetrics(c *gin.Context) {
	promHTTPHandler.ServeHTTP(c.Writer, c.Request)
}
