package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var healthTimeout = 2 * time.Second

// HealthCheck reports the status of a dependency. A failing Critical check makes the API unhealthy.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type healthApi struct {
	build  string
	checks []HealthCheck
}

func registerHealthAPI(e *echo.Echo, api *healthApi) {
	e.GET("/health", api.live)
	e.GET("/api/health", api.ready)
}

func (api *healthApi) live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", Build: api.build})
}

func (api *healthApi) ready(ctx echo.Context) error {
	c, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Build: api.build, Checks: make(map[string]string, len(api.checks))}
	code := http.StatusOK
	for _, hc := range api.checks {
		if err := hc.Check(c); err != nil {
			resp.Checks[hc.Name] = err.Error()
			if hc.Critical {
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
			}
			continue
		}
		resp.Checks[hc.Name] = "ok"
	}
	return ctx.JSON(code, resp)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Build  string            `json:"build,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}
