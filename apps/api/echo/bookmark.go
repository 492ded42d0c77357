package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/bookmark"
)

type bookmarkApi struct {
	svc      bookmark.Service
	validate *validator.Validate
}

func registerBookmarkAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *bookmarkApi) {
	bg := g.Group("/bookmarks", jwt)
	bg.GET("", api.list)
	bg.POST("", api.create)
	bg.DELETE("/:id", api.destroy)
}

func (api *bookmarkApi) list(ctx echo.Context) error {
	bms, err := api.svc.List(ctx.Request().Context(), contextActor(ctx), ctx.QueryParam("course_id"))
	if err != nil {
		return errors.Wrap(err, "listing bookmarks")
	}
	if bms == nil {
		bms = []bookmark.Bookmark{}
	}
	return ctx.JSON(http.StatusOK, bms)
}

func (api *bookmarkApi) create(ctx echo.Context) error {
	var data bookmark.NewBookmark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBookmark")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	bm, err := api.svc.Add(ctx.Request().Context(), contextActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "adding bookmark")
	}
	return ctx.JSON(http.StatusCreated, bm)
}

func (api *bookmarkApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting bookmark")
	}
	return ctx.NoContent(http.StatusNoContent)
}
