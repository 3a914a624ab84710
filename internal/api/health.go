package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler provides liveness and readiness endpoints for the service.
//
//   - /healthz: always 200 while the process is up.
//   - /readyz: 200 when the database answers a ping and the model directory
//     exists, 503 otherwise.
type HealthHandler struct {
	dbPing   func(ctx context.Context) error
	modelDir string
}

// NewHealthHandler builds the probes. dbPing is typically (*sql.DB).PingContext.
func NewHealthHandler(dbPing func(ctx context.Context) error, modelDir string) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, modelDir: modelDir}
}

// Register mounts GET /healthz and GET /readyz.
func (h *HealthHandler) Register(r *gin.Engine) {
	// @Summary      Liveness probe
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  map[string]string
	// @Router       /healthz [get]
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// @Summary      Readiness probe
	// @Description  Checks the database and the model directory
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  map[string]string
	// @Failure      503  {object}  map[string]string
	// @Router       /readyz [get]
	r.GET("/readyz", func(c *gin.Context) {
		checks := gin.H{"database": "ok", "model_directory": "ok"}
		ready := true

		if h.dbPing != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := h.dbPing(ctx); err != nil {
				checks["database"] = err.Error()
				ready = false
			}
		}
		if err := checkDir(h.modelDir); err != nil {
			checks["model_directory"] = err.Error()
			ready = false
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
	})
}

func checkDir(dir string) error {
	if dir == "" {
		return nil
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
