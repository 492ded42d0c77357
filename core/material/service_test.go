package material_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
	storagesvc "github.com/trezcool/darasa/services/storage"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

func TestKindFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "lesson.MP4", want: material.KindVideo},
		{filename: "clip.webm", want: material.KindVideo},
		{filename: "index.m3u8", want: material.KindHLS},
		{filename: "notes.pdf", want: material.KindPDF},
		{filename: "slides.pptx", want: material.KindDocument},
		{filename: "README", want: material.KindDocument},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, material.KindFromFilename(tt.filename))
		})
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	db := inmemdb.Open()
	hub := realtimesvc.NewHub(logger)

	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	matRepo := inmemdb.NewMaterialRepository(db)

	root := t.TempDir()
	bucket, err := storagesvc.NewLocalBucket(root, "/media")
	require.NoError(t, err)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	crsSvc := course.NewService(crsRepo, hub, logger)
	enrSvc := enrollment.NewService(enrRepo, crsSvc, user.NewServiceMock(usrRepo, mailSvc, conf), mailSvc, hub, logger)
	svc := material.NewService(matRepo, crsSvc, enrSvc, bucket, hub, logger)
	crsSvc.OnDelete(svc.ReleaseCourse)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Nobody", "nobody", "nobody@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, teacher.ID, "Go Basics", true)
	testutil.CreateEnrollment(t, enrRepo, student.ID, crs.ID)

	intro, err := svc.Add(ctx, teacher.Actor(), crs.ID, material.NewMaterial{Title: "Intro", Kind: material.KindLink, URL: "https://go.dev"})
	require.NoError(t, err)
	assert.Equal(t, 1, intro.Position)

	_, err = svc.Add(ctx, student.Actor(), crs.ID, material.NewMaterial{Title: "Spam", Kind: material.KindLink, URL: "https://spam.cd"})
	assert.Equal(t, core.ErrForbidden, err)

	t.Run("upload", func(t *testing.T) {
		mat, err := svc.Upload(ctx, teacher.Actor(), crs.ID, material.Upload{Filename: "week1-notes.pdf"}, strings.NewReader("%PDF-1.4"))
		require.NoError(t, err)
		assert.Equal(t, "week1-notes", mat.Title)
		assert.Equal(t, material.KindPDF, mat.Kind)
		assert.Equal(t, 2, mat.Position)
		assert.True(t, strings.HasPrefix(mat.URL, "/media/courses/"+crs.ID+"/"), mat.URL)

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(mat.StorageKey)))
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(content))

		// deleting the material removes the stored file
		require.NoError(t, svc.Delete(ctx, teacher.Actor(), mat.ID))
		_, err = os.Stat(filepath.Join(root, filepath.FromSlash(mat.StorageKey)))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("list", func(t *testing.T) {
		mats, err := svc.List(ctx, student.Actor(), crs.ID)
		require.NoError(t, err)
		assert.Len(t, mats, 1)

		_, err = svc.List(ctx, outsider.Actor(), crs.ID)
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("reorder", func(t *testing.T) {
		second, err := svc.Add(ctx, teacher.Actor(), crs.ID, material.NewMaterial{Title: "Loops", Kind: material.KindVideo, URL: "https://videos.cd/loops.mp4"})
		require.NoError(t, err)

		tests := []struct {
			name string
			ids  []string
		}{
			{name: "missing one", ids: []string{second.ID}},
			{name: "unknown", ids: []string{second.ID, "nope"}},
			{name: "duplicate", ids: []string{second.ID, second.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Reorder(ctx, teacher.Actor(), crs.ID, tt.ids)
				vErr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "error = %v", err)
				assert.Equal(t, "ids: "+material.ErrInvalidReorder.Error(), vErr.Error())
			})
		}

		mats, err := svc.Reorder(ctx, teacher.Actor(), crs.ID, []string{second.ID, intro.ID})
		require.NoError(t, err)
		if assert.Len(t, mats, 2) {
			assert.Equal(t, second.ID, mats[0].ID)
			assert.Equal(t, 1, mats[0].Position)
			assert.Equal(t, intro.ID, mats[1].ID)
			assert.Equal(t, 2, mats[1].Position)
		}
	})
	t.Run("delete course", func(t *testing.T) {
		other := testutil.CreateCourse(t, crsRepo, teacher.ID, "Go Advanced", true)
		var keys []string
		for _, name := range []string{"slides.pdf", "demo.mp4"} {
			mat, err := svc.Upload(ctx, teacher.Actor(), other.ID, material.Upload{Filename: name}, strings.NewReader(name))
			require.NoError(t, err)
			keys = append(keys, mat.StorageKey)
		}
		_, err := svc.Add(ctx, teacher.Actor(), other.ID, material.NewMaterial{Title: "Docs", Kind: material.KindLink, URL: "https://go.dev/doc"})
		require.NoError(t, err)

		require.NoError(t, crsSvc.Delete(ctx, teacher.Actor(), other.ID))
		for _, key := range keys {
			_, err := os.Stat(filepath.Join(root, filepath.FromSlash(key)))
			assert.True(t, os.IsNotExist(err), key)
		}

		// the other course keeps its files
		mats, err := svc.List(ctx, teacher.Actor(), crs.ID)
		require.NoError(t, err)
		assert.Len(t, mats, 2)
	})
}
