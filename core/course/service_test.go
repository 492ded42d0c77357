package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	logsvc "github.com/trezcool/darasa/services/logger"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	logger := logsvc.NewNopLogger()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	svc := course.NewService(inmemdb.NewCourseRepository(db), realtimesvc.NewHub(logger), logger)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminOwner}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	t.Run("create", func(t *testing.T) {
		_, err := svc.Create(ctx, student.Actor(), course.NewCourse{Title: "Nope"})
		assert.Equal(t, core.ErrForbidden, err)

		first, err := svc.Create(ctx, teacher.Actor(), course.NewCourse{Title: "Intro to Go", Level: course.LevelBeginner})
		require.NoError(t, err)
		assert.Equal(t, "intro-to-go", first.Slug)
		assert.Equal(t, teacher.ID, first.InstructorID)

		second, err := svc.Create(ctx, teacher.Actor(), course.NewCourse{Title: "Intro to Go!"})
		require.NoError(t, err)
		assert.Equal(t, "intro-to-go-2", second.Slug)

		// admins may assign the course to a teacher
		third, err := svc.Create(ctx, admin.Actor(), course.NewCourse{Title: "Intro to Go", InstructorID: other.ID})
		require.NoError(t, err)
		assert.Equal(t, "intro-to-go-3", third.Slug)
		assert.Equal(t, other.ID, third.InstructorID)
	})

	draft, err := svc.Create(ctx, teacher.Actor(), course.NewCourse{Title: "Drafty"})
	require.NoError(t, err)

	t.Run("visibility", func(t *testing.T) {
		tests := []struct {
			name        string
			actor       core.Actor
			wantGet     error
			wantManaged error
		}{
			{name: "instructor", actor: teacher.Actor()},
			{name: "admin", actor: admin.Actor()},
			{name: "other teacher", actor: other.Actor(), wantGet: course.ErrNotFound, wantManaged: course.ErrNotFound},
			{name: "student", actor: student.Actor(), wantGet: course.ErrNotFound, wantManaged: course.ErrNotFound},
			{name: "anonymous", actor: core.Actor{}, wantGet: course.ErrNotFound, wantManaged: course.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Get(ctx, tt.actor, draft.ID)
				assert.Equal(t, tt.wantGet, err)
				_, err = svc.GetManaged(ctx, tt.actor, draft.ID)
				assert.Equal(t, tt.wantManaged, err)
			})
		}

		_, err := svc.Get(ctx, teacher.Actor(), "not-a-uuid")
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("update", func(t *testing.T) {
		published := true
		title := "Drafty Revisited"
		crs, err := svc.Update(ctx, teacher.Actor(), draft.ID, course.UpdateCourse{Title: &title, IsPublished: &published})
		require.NoError(t, err)
		assert.Equal(t, "drafty-revisited", crs.Slug)
		assert.True(t, crs.IsPublished)

		// published courses are visible, not editable
		_, err = svc.Get(ctx, student.Actor(), draft.ID)
		assert.NoError(t, err)
		_, err = svc.Update(ctx, other.Actor(), draft.ID, course.UpdateCourse{Title: &title})
		assert.Equal(t, core.ErrForbidden, err)

		// keeping the title keeps the slug
		crs, err = svc.Update(ctx, teacher.Actor(), draft.ID, course.UpdateCourse{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "drafty-revisited", crs.Slug)
	})

	t.Run("query", func(t *testing.T) {
		courses, err := svc.Query(ctx, student.Actor(), nil, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 1)

		courses, err = svc.Query(ctx, teacher.Actor(), nil, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 3)

		courses, err = svc.Query(ctx, admin.Actor(), nil, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 4)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, student.Actor(), draft.ID))
		require.NoError(t, svc.Delete(ctx, teacher.Actor(), draft.ID))
		_, err := svc.Get(ctx, teacher.Actor(), draft.ID)
		assert.Equal(t, course.ErrNotFound, err)
	})
}

func TestService_DeleteHooks(t *testing.T) {
	ctx := context.Background()
	logger := logsvc.NewNopLogger()
	db := inmemdb.Open()
	crsRepo := inmemdb.NewCourseRepository(db)
	svc := course.NewService(crsRepo, realtimesvc.NewHub(logger), logger)

	teacher := testutil.CreateUser(t, inmemdb.NewUserRepository(db), "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	kept := testutil.CreateCourse(t, crsRepo, teacher.ID, "Go Basics", true)
	gone := testutil.CreateCourse(t, crsRepo, teacher.ID, "Go Advanced", true)

	var prepared, released []string
	svc.OnDelete(func(ctx context.Context, crs course.Course) (func(context.Context), error) {
		prepared = append(prepared, crs.ID)
		if crs.ID == kept.ID {
			return nil, errors.New("bucket unavailable")
		}
		return func(ctx context.Context) {
			// the course row is already gone
			_, err := crsRepo.GetCourse(ctx, crs.ID)
			assert.Error(t, err)
			released = append(released, crs.ID)
		}, nil
	})

	err := svc.Delete(ctx, teacher.Actor(), kept.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	_, err = svc.Get(ctx, teacher.Actor(), kept.ID)
	assert.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, teacher.Actor(), gone.ID))
	assert.Equal(t, []string{kept.ID, gone.ID}, prepared)
	assert.Equal(t, []string{gone.ID}, released)
}
