package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/aicluster-lab/gpuboard/pkg/aggregator"
	"github.com/aicluster-lab/gpuboard/pkg/pipeline"
)

type fakeReports struct {
	report *pipeline.Report
}

func (f *fakeReports) LatestReport() *pipeline.Report { return f.report }

func testRouter(reports ReportSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	mgr := NewReportMgr(&RegisterConfig{Reports: reports})
	mgr.RegisterPublic(router.Group(mgr.GetName()))
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func testReport() *pipeline.Report {
	return &pipeline.Report{
		ID:          "inv-1",
		GeneratedAt: time.Date(2026, 1, 7, 2, 0, 0, 0, time.UTC),
		StartDate:   "2026-01-06",
		EndDate:     "2026-01-06",
		Tables: map[aggregator.Grain][]aggregator.UtilizationRow{
			aggregator.GrainDaily: {
				{PeriodKey: "2026-01-06", Company: "acme", TotalGPUHour: 64},
				{PeriodKey: "2026-01-06", Company: "globex"},
			},
		},
		Summary: &aggregator.WeeklySummary{},
	}
}

func TestReportEndpointsBeforeFirstPass(t *testing.T) {
	router := testRouter(&fakeReports{})
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/v1/report").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/v1/report/table/daily").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/v1/report/summary").Code)
}

func TestReportEndpoints(t *testing.T) {
	router := testRouter(&fakeReports{report: testReport()})

	assert.Equal(t, http.StatusOK, get(router, "/v1/report").Code)
	assert.Equal(t, http.StatusOK, get(router, "/v1/report/summary").Code)

	w := get(router, "/v1/report/table/daily")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "globex")

	w = get(router, "/v1/report/table/daily?company=acme")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
	assert.NotContains(t, w.Body.String(), "globex")

	assert.Equal(t, http.StatusBadRequest, get(router, "/v1/report/table/hourly").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/v1/report/table/daily?company=initech").Code)
}
