package bookmark_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/bookmark"
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
	crsRepo := inmemdb.NewCourseRepository(db)
	svc := bookmark.NewService(inmemdb.NewBookmarkRepository(db), course.NewService(crsRepo, realtimesvc.NewHub(logger), logger))

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Jon", "jon", "jon@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, teacher.ID, "Go Basics", true)
	draft := testutil.CreateCourse(t, crsRepo, teacher.ID, "Draft", false)

	_, err := svc.Add(ctx, core.Actor{}, bookmark.NewBookmark{CourseID: crs.ID})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = svc.Add(ctx, student.Actor(), bookmark.NewBookmark{CourseID: draft.ID})
	assert.Equal(t, course.ErrNotFound, err)

	bm, err := svc.Add(ctx, student.Actor(), bookmark.NewBookmark{CourseID: crs.ID, PositionSeconds: 95, Note: "closures"})
	require.NoError(t, err)
	assert.Equal(t, student.ID, bm.UserID)

	_, err = svc.Add(ctx, student.Actor(), bookmark.NewBookmark{CourseID: crs.ID, PositionSeconds: 95})
	assert.Equal(t, bookmark.ErrExists, err)

	// same position, another user
	_, err = svc.Add(ctx, other.Actor(), bookmark.NewBookmark{CourseID: crs.ID, PositionSeconds: 95})
	require.NoError(t, err)

	bms, err := svc.List(ctx, student.Actor(), crs.ID)
	require.NoError(t, err)
	if assert.Len(t, bms, 1) {
		assert.Equal(t, "closures", bms[0].Note)
	}

	assert.Equal(t, bookmark.ErrNotFound, svc.Delete(ctx, other.Actor(), bm.ID))
	assert.Equal(t, bookmark.ErrNotFound, svc.Delete(ctx, student.Actor(), "nope"))
	require.NoError(t, svc.Delete(ctx, student.Actor(), bm.ID))

	bms, err = svc.List(ctx, student.Actor(), "")
	require.NoError(t, err)
	assert.Empty(t, bms)
}
