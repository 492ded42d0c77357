package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/material"
)

const maxUploadBytes = 512 << 20

type materialApi struct {
	svc      material.Service
	validate *validator.Validate
}

func registerMaterialAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *materialApi) {
	cg := g.Group("/courses/:id/materials", jwt)
	cg.GET("", api.list)
	cg.POST("", api.create)
	cg.POST("/upload", api.upload)
	cg.PUT("/order", api.reorder)

	mg := g.Group("/materials/:id", jwt)
	mg.GET("", api.retrieve)
	mg.PUT("", api.update)
	mg.DELETE("", api.destroy)
}

func (api *materialApi) list(ctx echo.Context) error {
	mats, err := api.svc.List(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) create(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mat, err := api.svc.Add(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

// upload expects a multipart form: `file` plus optional `title` & `duration_seconds`.
func (api *materialApi) upload(ctx echo.Context) error {
	ctx.Request().Body = http.MaxBytesReader(ctx.Response(), ctx.Request().Body, maxUploadBytes)

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	var duration int
	if raw := ctx.FormValue("duration_seconds"); raw != "" {
		if duration, err = strconv.Atoi(raw); err != nil || duration < 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "duration_seconds", Error: "must be a positive number"})
		}
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	mat, err := api.svc.Upload(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), material.Upload{
		Title:           ctx.FormValue("title"),
		Filename:        fh.Filename,
		ContentType:     fh.Header.Get(echo.HeaderContentType),
		DurationSeconds: duration,
	}, f)
	if err != nil {
		return errors.Wrap(err, "uploading material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *materialApi) reorder(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}

	mats, err := api.svc.Reorder(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data.IDs)
	if err != nil {
		return errors.Wrap(err, "reordering materials")
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	mat, err := api.svc.Get(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) update(ctx echo.Context) error {
	var data material.UpdateMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mat, err := api.svc.Update(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
