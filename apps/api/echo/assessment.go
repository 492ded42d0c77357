package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/assessment"
)

type assessmentApi struct {
	svc      assessment.Service
	validate *validator.Validate
}

func registerAssessmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *assessmentApi) {
	g.GET("/courses/:id/assessments", api.list, jwt)
	g.POST("/courses/:id/assessments", api.create, jwt)

	ag := g.Group("/assessments/:id", jwt)
	ag.GET("", api.retrieve)
	ag.PUT("", api.update)
	ag.DELETE("", api.destroy)
	ag.GET("/questions", api.listQuestions)
	ag.POST("/questions", api.addQuestion)
	ag.POST("/attempts", api.startAttempt)

	qg := g.Group("/questions/:id", jwt)
	qg.PUT("", api.updateQuestion)
	qg.DELETE("", api.destroyQuestion)

	tg := g.Group("/attempts/:id", jwt)
	tg.GET("", api.retrieveAttempt)
	tg.PUT("/answers", api.saveAnswers)
	tg.POST("/submit", api.submit)
	tg.GET("/result", api.result)

	g.GET("/results", api.results, jwt)
}

func (api *assessmentApi) list(ctx echo.Context) error {
	asmts, err := api.svc.ListAssessments(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing assessments")
	}
	if asmts == nil {
		asmts = []assessment.Assessment{}
	}
	return ctx.JSON(http.StatusOK, asmts)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asmt, err := api.svc.CreateAssessment(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, asmt)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	asmt, err := api.svc.GetAssessment(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return ctx.JSON(http.StatusOK, asmt)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	var data assessment.UpdateAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asmt, err := api.svc.UpdateAssessment(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, asmt)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteAssessment(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

func (api *assessmentApi) listQuestions(ctx echo.Context) error {
	qs, err := api.svc.ListQuestions(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	if qs == nil {
		qs = []assessment.Question{}
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *assessmentApi) addQuestion(ctx echo.Context) error {
	var data assessment.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.AddQuestion(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *assessmentApi) updateQuestion(ctx echo.Context) error {
	var data assessment.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *assessmentApi) destroyQuestion(ctx echo.Context) error {
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), contextActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attempts

func (api *assessmentApi) startAttempt(ctx echo.Context) error {
	att, err := api.svc.StartAttempt(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *assessmentApi) retrieveAttempt(ctx echo.Context) error {
	att, err := api.svc.GetAttempt(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *assessmentApi) saveAnswers(ctx echo.Context) error {
	var data assessment.SaveAnswers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveAnswers")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	att, err := api.svc.SaveAnswers(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"), data.Answers)
	if err != nil {
		return errors.Wrap(err, "saving answers")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *assessmentApi) submit(ctx echo.Context) error {
	res, err := api.svc.CompleteAttempt(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assessmentApi) result(ctx echo.Context) error {
	res, err := api.svc.GetResult(ctx.Request().Context(), contextActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting result")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assessmentApi) results(ctx echo.Context) error {
	filter := assessment.ResultFilter{
		StudentID:    ctx.QueryParam("student_id"),
		AssessmentID: ctx.QueryParam("assessment_id"),
		CourseID:     ctx.QueryParam("course_id"),
	}
	ordering := bindOrdering(ctx, assessment.ResultOrderingFields)

	results, err := api.svc.ListResults(ctx.Request().Context(), contextActor(ctx), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "listing results")
	}
	if results == nil {
		results = []assessment.Result{}
	}
	return ctx.JSON(http.StatusOK, results)
}
