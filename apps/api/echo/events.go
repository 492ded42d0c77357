package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
)

var heartbeatInterval = 15 * time.Second

type eventsApi struct {
	hub    *realtimesvc.Hub
	logger core.Logger
}

func registerEventsAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *eventsApi) {
	g.GET("/events", api.stream, jwt)
}

// stream pushes the events addressed to the caller (or public) as Server-Sent Events.
func (api *eventsApi) stream(ctx echo.Context) error {
	flusher, ok := ctx.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	reqCtx := ctx.Request().Context()
	actor := contextActor(ctx)
	events := api.hub.Subscribe(reqCtx, actor.ID)

	h := ctx.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	ctx.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	w := ctx.Response()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			raw, err := json.Marshal(evt)
			if err != nil {
				api.logger.Warn("encoding realtime event", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Table, raw)
			flusher.Flush()
		}
	}
}
