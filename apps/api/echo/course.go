package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
)

type courseApi struct {
	svc         course.Service
	enrollments enrollment.Service
	validate    *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, api *courseApi) {
	cg := g.Group("/courses")

	// anyone may browse published courses
	cg.GET("", api.query, optionalJWT)
	cg.GET("/:id", api.retrieve, optionalJWT)

	cg.POST("", api.create, jwt)
	cg.PUT("/:id", api.update, jwt)
	cg.DELETE("/:id", api.destroy, jwt)

	cg.POST("/:id/enroll", api.enroll, jwt)
	cg.DELETE("/:id/enroll", api.unenroll, jwt)
	cg.GET("/:id/enrollments", api.courseEnrollments, jwt)
	cg.PUT("/:id/progress", api.updateProgress, jwt)

	g.GET("/enrollments", api.myEnrollments, jwt)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := &course.QueryFilter{
		Search:       ctx.QueryParam("search"),
		Category:     ctx.QueryParam("category"),
		Level:        ctx.QueryParam("level"),
		InstructorID: ctx.QueryParam("instructor_id"),
		Published:    queryBool(ctx, "published"),
	}
	filter.Clean()

	courses, err := api.svc.Query(ctx.Request().Context(), contextActor(ctx), filter, bindOrdering(ctx, course.OrderingFields))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), contextActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *courseApi) enroll(ctx echo.Context) error {
	enr, err := api.enrollments.Enroll(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	if err := api.enrollments.Unenroll(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) courseEnrollments(ctx echo.Context) error {
	enrs, err := api.enrollments.ListForCourse(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing course enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *courseApi) myEnrollments(ctx echo.Context) error {
	enrs, err := api.enrollments.ListForStudent(ctx.Request().Context(), contextActor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *courseApi) updateProgress(ctx echo.Context) error {
	var data enrollment.UpdateProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	enr, err := api.enrollments.UpdateProgress(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), *data.Progress)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, enr)
}
