package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aicluster-lab/gpuboard/internal/resputil"
	"github.com/aicluster-lab/gpuboard/pkg/aggregator"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewReportMgr)
}

type ReportMgr struct {
	name    string
	reports ReportSource
}

func NewReportMgr(conf *RegisterConfig) Manager {
	return &ReportMgr{
		name:    "v1/report",
		reports: conf.Reports,
	}
}

func (mgr *ReportMgr) GetName() string { return mgr.name }

func (mgr *ReportMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("", mgr.GetReport)
	g.GET("summary", mgr.GetSummary)
	g.GET("table/:grain", mgr.GetTable)
}

// GetReport returns the full latest report snapshot.
func (mgr *ReportMgr) GetReport(c *gin.Context) {
	report := mgr.reports.LatestReport()
	if report == nil {
		resputil.Error(c, "no report published yet", resputil.ReportNotReady)
		return
	}
	resputil.Success(c, report)
}

// GetSummary returns the weekly project summary of the latest report.
func (mgr *ReportMgr) GetSummary(c *gin.Context) {
	report := mgr.reports.LatestReport()
	if report == nil {
		resputil.Error(c, "no report published yet", resputil.ReportNotReady)
		return
	}
	resputil.Success(c, report.Summary)
}

// GetTable returns one utilization table, optionally filtered by the
// company query parameter.
func (mgr *ReportMgr) GetTable(c *gin.Context) {
	report := mgr.reports.LatestReport()
	if report == nil {
		resputil.Error(c, "no report published yet", resputil.ReportNotReady)
		return
	}
	grain := aggregator.Grain(c.Param("grain"))
	table, ok := report.Tables[grain]
	if !ok {
		resputil.Error(c, "unknown grain: "+string(grain), resputil.InvalidRequest)
		return
	}
	company := c.Query("company")
	if company == "" {
		resputil.Success(c, table)
		return
	}
	filtered := make([]aggregator.UtilizationRow, 0, len(table))
	for _, row := range table {
		if row.Company == company {
			filtered = append(filtered, row)
		}
	}
	if len(filtered) == 0 {
		resputil.Error(c, "no rows for company "+company, resputil.ReportNotFound)
		return
	}
	resputil.Success(c, filtered)
}
