package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

var orderingParam = "ordering"

// bindOrdering reads `?ordering=a,-b`, keeping only the allowed fields.
func bindOrdering(ctx echo.Context, allowed []string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// queryBool returns nil when the param is missing or not a bool.
func queryBool(ctx echo.Context, name string) *bool {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func queryTime(ctx echo.Context, name string) time.Time {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	IDsRequest struct {
		IDs []string `json:"ids"`
	}
)
