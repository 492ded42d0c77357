package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/tests"
)

func Test_assessmentApi(t *testing.T) {
	env := setup(t)

	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, env.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, env.usrRepo, "Outsider", "outsider", "outsider@test.cd", "", []string{user.RoleStudent}, true)

	crs := testutil.CreateCourse(t, env.crsRepo, teacher.ID, "Go Basics", true)
	testutil.CreateEnrollment(t, env.enrRepo, student.ID, crs.ID)
	draft := testutil.CreateAssessment(t, env.asmRepo, crs.ID, "Draft Quiz", false, 0)

	teacherToken := env.getToken(t, teacher)
	otherToken := env.getToken(t, other)
	studentToken := env.getToken(t, student)
	outsiderToken := env.getToken(t, outsider)

	var asmt assessment.Assessment
	t.Run("create", func(t *testing.T) {
		path := "/v1/courses/" + crs.ID + "/assessments"
		runTests(t, env, []httpTest{
			{
				name:     "anonymous",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"title":"Quiz"}`),
				wantCode: http.StatusUnauthorized,
				wantData: marchallObj(t, errMissingToken),
			},
			{
				name:     "not the instructor",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"title":"Quiz"}`),
				token:    otherToken,
				wantCode: http.StatusForbidden,
				wantData: []byte(`{"error":"permission denied"}`),
			},
			{
				name:     "student",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"title":"Quiz"}`),
				token:    studentToken,
				wantCode: http.StatusForbidden,
			},
			{
				name:     "missing title",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"title":"   "}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"title":"this field is required"}`),
			},
			{
				name:     "passing score out of range",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"title":"Quiz","passing_score":120}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
			},
		})

		rec := env.do(http.MethodPost, path, teacherToken, []byte(`{"title":" Quiz 1 ","passing_score":60}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &asmt)
		assert.Equal(t, "Quiz 1", asmt.Title)
		assert.Equal(t, crs.ID, asmt.CourseID)
		assert.False(t, asmt.IsPublished)
	})

	t.Run("unpublished assessments are hidden from students", func(t *testing.T) {
		runTests(t, env, []httpTest{
			{name: "student", method: http.MethodGet, path: "/v1/assessments/" + asmt.ID, token: studentToken, wantCode: http.StatusNotFound},
			{name: "teacher", method: http.MethodGet, path: "/v1/assessments/" + asmt.ID, token: teacherToken, wantCode: http.StatusOK},
			{name: "malformed id", method: http.MethodGet, path: "/v1/assessments/abc", token: teacherToken, wantCode: http.StatusNotFound},
		})

		rec := env.do(http.MethodGet, "/v1/courses/"+crs.ID+"/assessments", studentToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var asmts []assessment.Assessment
		unmarshal(t, rec, &asmts)
		assert.Empty(t, asmts)
	})

	questionIDs := map[string]string{}
	t.Run("questions", func(t *testing.T) {
		path := "/v1/assessments/" + asmt.ID + "/questions"
		runTests(t, env, []httpTest{
			{
				name:     "unknown kind",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"kind":"essay","prompt":"Tell me"}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"kind":"kind must be one of multiple_choice, true_false, short_answer or code"}`),
			},
			{
				name:     "too few options",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"kind":"multiple_choice","prompt":"2+2?","options":["4"],"correct_answer":"4"}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"options":"multiple choice questions need at least 2 options"}`),
			},
			{
				name:     "answer not an option",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"kind":"multiple_choice","prompt":"2+2?","options":["3","4"],"correct_answer":"5"}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"correct_answer":"correct answer must be one of the options"}`),
			},
			{
				name:     "bad true/false answer",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"kind":"true_false","prompt":"Go is fun","correct_answer":"maybe"}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"correct_answer":"correct answer must be true or false"}`),
			},
			{
				name:     "short answer without answer",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"kind":"short_answer","prompt":"Name the mascot"}`),
				token:    teacherToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"correct_answer":"correct answer is required"}`),
			},
			{
				name:     "not the instructor",
				method:   http.MethodPost,
				path:     path,
				body:     []byte(`{"kind":"code","prompt":"Say hello"}`),
				token:    otherToken,
				wantCode: http.StatusForbidden,
			},
		})

		bodies := map[string]string{
			"mc":   `{"kind":"multiple_choice","prompt":"2+2?","options":["3","4"],"correct_answer":"4","points":2}`,
			"tf":   `{"kind":"TRUE_FALSE","prompt":"Go has generics","correct_answer":"TRUE"}`,
			"code": `{"kind":"code","prompt":"Say hello","points":2}`,
		}
		for _, key := range []string{"mc", "tf", "code"} {
			rec := env.do(http.MethodPost, path, teacherToken, []byte(bodies[key]))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var q assessment.Question
			unmarshal(t, rec, &q)
			questionIDs[key] = q.ID

			if key == "tf" {
				assert.Equal(t, assessment.KindTrueFalse, q.Kind)
				assert.Equal(t, []string{"true", "false"}, q.Options)
				assert.Equal(t, "true", q.CorrectAnswer)
				assert.Equal(t, 1, q.Points)
				assert.Equal(t, 2, q.Position)
			}
		}

		rec := env.do(http.MethodPut, "/v1/questions/"+questionIDs["mc"], teacherToken, []byte(`{"correct_answer":"7"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"correct_answer":"correct answer must be one of the options"}`, rec.Body.String())
	})

	t.Run("publish", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/v1/assessments/"+asmt.ID, teacherToken, []byte(`{"is_published":true}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &asmt)
		assert.True(t, asmt.IsPublished)
		assert.Equal(t, 60.0, asmt.PassingScore)
	})

	t.Run("students do not see correct answers", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/assessments/"+asmt.ID+"/questions", studentToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var qs []assessment.Question
		unmarshal(t, rec, &qs)
		require.Len(t, qs, 3)
		for _, q := range qs {
			assert.Empty(t, q.CorrectAnswer)
		}

		rec = env.do(http.MethodGet, "/v1/assessments/"+asmt.ID+"/questions", teacherToken)
		unmarshal(t, rec, &qs)
		assert.Equal(t, "4", qs[0].CorrectAnswer)
	})

	var att assessment.Attempt
	t.Run("start attempt", func(t *testing.T) {
		path := "/v1/assessments/" + asmt.ID + "/attempts"
		runTests(t, env, []httpTest{
			{name: "not enrolled", method: http.MethodPost, path: path, token: outsiderToken, wantCode: http.StatusForbidden},
			{name: "draft", method: http.MethodPost, path: "/v1/assessments/" + draft.ID + "/attempts", token: studentToken, wantCode: http.StatusNotFound},
		})

		rec := env.do(http.MethodPost, path, studentToken)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &att)
		assert.Equal(t, assessment.StatusInProgress, att.Status)
		assert.Equal(t, student.ID, att.StudentID)

		// starting again resumes the running attempt
		rec = env.do(http.MethodPost, path, studentToken)
		require.Equal(t, http.StatusCreated, rec.Code)
		var again assessment.Attempt
		unmarshal(t, rec, &again)
		assert.Equal(t, att.ID, again.ID)
	})

	t.Run("save answers", func(t *testing.T) {
		path := "/v1/attempts/" + att.ID + "/answers"
		runTests(t, env, []httpTest{
			{
				name:     "unknown question",
				method:   http.MethodPut,
				path:     path,
				body:     []byte(`{"answers":{"nope":"x"}}`),
				token:    studentToken,
				wantCode: http.StatusBadRequest,
				wantData: []byte(`{"answers":"unknown question: nope"}`),
			},
			{
				name:     "someone else's attempt",
				method:   http.MethodPut,
				path:     path,
				body:     []byte(`{"answers":{}}`),
				token:    outsiderToken,
				wantCode: http.StatusNotFound,
			},
		})

		rec := env.do(http.MethodPut, path, studentToken, marchallObj(t, map[string]interface{}{
			"answers": map[string]string{questionIDs["mc"]: "3"},
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// later saves are merged over earlier ones
		rec = env.do(http.MethodPut, path, studentToken, marchallObj(t, map[string]interface{}{
			"answers": map[string]string{questionIDs["mc"]: " 4 ", questionIDs["tf"]: "True"},
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &att)
		assert.Len(t, att.Answers, 2)

		runTests(t, env, []httpTest{
			{name: "student reads own attempt", method: http.MethodGet, path: "/v1/attempts/" + att.ID, token: studentToken, wantCode: http.StatusOK},
			{name: "instructor reads attempt", method: http.MethodGet, path: "/v1/attempts/" + att.ID, token: teacherToken, wantCode: http.StatusOK},
			{name: "other teacher", method: http.MethodGet, path: "/v1/attempts/" + att.ID, token: otherToken, wantCode: http.StatusNotFound},
			{name: "no result yet", method: http.MethodGet, path: "/v1/attempts/" + att.ID + "/result", token: studentToken, wantCode: http.StatusNotFound},
		})
	})

	var res assessment.Result
	t.Run("submit", func(t *testing.T) {
		emailsvc.ResetSentMessages()

		rec := env.do(http.MethodPost, "/v1/attempts/"+att.ID+"/submit", studentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &res)
		assert.Equal(t, 3, res.Score)
		assert.Equal(t, 5, res.MaxScore)
		assert.Equal(t, 60.0, res.Percentage)
		assert.True(t, res.Passed)
		assert.True(t, res.NeedsReview)

		sent := emailsvc.Sent()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, "hero@test.cd", sent[0].To[0].Address)
			assert.Contains(t, sent[0].TextContent, "Score: 3/5 (60.0%) - passed")
		}

		// submitting twice hands back the stored result
		rec = env.do(http.MethodPost, "/v1/attempts/"+att.ID+"/submit", studentToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var again assessment.Result
		unmarshal(t, rec, &again)
		assert.Equal(t, res.ID, again.ID)

		rec = env.do(http.MethodGet, "/v1/attempts/"+att.ID, studentToken)
		unmarshal(t, rec, &att)
		assert.Equal(t, assessment.StatusCompleted, att.Status)
		assert.NotNil(t, att.SubmittedAt)

		runTests(t, env, []httpTest{
			{
				name:     "answers are frozen",
				method:   http.MethodPut,
				path:     "/v1/attempts/" + att.ID + "/answers",
				body:     []byte(`{"answers":{}}`),
				token:    studentToken,
				wantCode: http.StatusConflict,
				wantData: []byte(`{"error":"attempt is no longer in progress"}`),
			},
			{
				name:     "one attempt per student",
				method:   http.MethodPost,
				path:     "/v1/assessments/" + asmt.ID + "/attempts",
				token:    studentToken,
				wantCode: http.StatusConflict,
				wantData: []byte(`{"error":"an attempt for this assessment was already submitted"}`),
			},
			{name: "result", method: http.MethodGet, path: "/v1/attempts/" + att.ID + "/result", token: studentToken, wantCode: http.StatusOK},
		})
	})

	t.Run("results", func(t *testing.T) {
		tests := []struct {
			name  string
			path  string
			token string
			want  int
		}{
			{name: "own results", path: "/v1/results", token: studentToken, want: 1},
			{name: "instructor by assessment", path: "/v1/results?assessment_id=" + asmt.ID, token: teacherToken, want: 1},
			{name: "instructor by course", path: "/v1/results?course_id=" + crs.ID + "&ordering=-score", token: teacherToken, want: 1},
			{name: "outsider only sees own", path: "/v1/results?assessment_id=" + asmt.ID, token: outsiderToken, want: 0},
			{name: "other teacher only sees own", path: "/v1/results?course_id=" + crs.ID, token: otherToken, want: 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.do(http.MethodGet, tt.path, tt.token)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var results []assessment.Result
				unmarshal(t, rec, &results)
				assert.Len(t, results, tt.want)
			})
		}

		rec := env.do(http.MethodGet, "/v1/results", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		runTests(t, env, []httpTest{
			{name: "question by other teacher", method: http.MethodDelete, path: "/v1/questions/" + questionIDs["code"], token: otherToken, wantCode: http.StatusForbidden},
			{name: "question", method: http.MethodDelete, path: "/v1/questions/" + questionIDs["code"], token: teacherToken, wantCode: http.StatusNoContent},
			{name: "question again", method: http.MethodDelete, path: "/v1/questions/" + questionIDs["code"], token: teacherToken, wantCode: http.StatusNotFound},
			{name: "draft by student", method: http.MethodDelete, path: "/v1/assessments/" + draft.ID, token: studentToken, wantCode: http.StatusNotFound},
			{name: "draft", method: http.MethodDelete, path: "/v1/assessments/" + draft.ID, token: teacherToken, wantCode: http.StatusNoContent},
		})
	})
}
