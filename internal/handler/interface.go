package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aicluster-lab/gpuboard/pkg/pipeline"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
}

// ReportSource is the slice of the pipeline the handlers read from.
type ReportSource interface {
	LatestReport() *pipeline.Report
}

type RegisterConfig struct {
	Reports ReportSource
}

// Registers collects manager constructors; each handler file appends its own
// in init().
var Registers []func(*RegisterConfig) Manager
