package internal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aicluster-lab/gpuboard/internal/handler"
)

type Backend struct {
	R *gin.Engine
}

func Register(conf *handler.RegisterConfig) *Backend {
	s := new(Backend)
	s.R = gin.Default()

	s.R.GET("/v1/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})

	for _, manager := range registerManagers(conf) {
		manager.RegisterPublic(s.R.Group(manager.GetName()))
	}

	return s
}
