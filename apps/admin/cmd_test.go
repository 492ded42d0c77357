package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/video"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
	storagesvc "github.com/trezcool/darasa/services/storage"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

type fakeConverter struct {
	source, id string
	res        video.Result
}

func (c *fakeConverter) Convert(_ context.Context, source, id string) video.Result {
	c.source, c.id = source, id
	return c.res
}

type testEnv struct {
	cli     *commandLine
	out     *bytes.Buffer
	usrRepo user.Repository
	crsRepo course.Repository
	enrRepo enrollment.Repository
	matRepo material.Repository
	asmRepo assessment.Repository
	conv    *fakeConverter
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	validate, _ := testutil.NewValidator()

	db := inmemdb.Open()
	env := &testEnv{
		out:     new(bytes.Buffer),
		usrRepo: inmemdb.NewUserRepository(db),
		crsRepo: inmemdb.NewCourseRepository(db),
		enrRepo: inmemdb.NewEnrollmentRepository(db),
		matRepo: inmemdb.NewMaterialRepository(db),
		asmRepo: inmemdb.NewAssessmentRepository(db),
		conv:    new(fakeConverter),
	}

	bucket, err := storagesvc.NewLocalBucket(t.TempDir(), conf.Storage.PublicBaseURL)
	require.NoError(t, err)

	hub := realtimesvc.NewHub(logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewServiceMock(env.usrRepo, mailSvc, conf)
	crsSvc := course.NewService(env.crsRepo, hub, logger)
	enrSvc := enrollment.NewService(env.enrRepo, crsSvc, usrSvc, mailSvc, hub, logger)
	matSvc := material.NewService(env.matRepo, crsSvc, enrSvc, bucket, hub, logger)
	crsSvc.OnDelete(matSvc.ReleaseCourse)

	env.cli = &commandLine{
		db:          sqlx.NewDb(nil, "postgres"),
		validate:    validate,
		usrRepo:     env.usrRepo,
		courses:     crsSvc,
		enrollments: enrSvc,
		materials:   matSvc,
		assessments: assessment.NewService(env.asmRepo, crsSvc, enrSvc, usrSvc, mailSvc, hub, logger),
		videos:      video.NewLibrary(t.TempDir(), logger),
		converter:   env.conv,
		out:         env.out,
	}
	return env
}

// withPassword makes the password prompt answer pwd for the duration of the test.
func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func TestCommandLine_help(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"lol"}},
		{name: "migrate without command", args: []string{"migrate"}},
		{name: "seed without file", args: []string{"seed"}},
		{name: "hls without subcommand", args: []string{"hls"}},
		{name: "unknown hls subcommand", args: []string{"hls", "lol"}},
		{name: "convert without id", args: []string{"hls", "convert", "-source", "movie.mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			assert.Equal(t, errHelp, err)
		})
	}
}

func TestCommandLine_migrate(t *testing.T) {
	env := setup(t)

	var gotCmd string
	var gotArgs []string
	orig := migrateFunc
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		gotCmd, gotArgs = command, args
		if command == "lol" {
			return errors.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { migrateFunc = orig })

	tests := []struct {
		name       string
		args       []string
		wantCmd    string
		wantArgs   []string
		wantErrStr string
	}{
		{name: "up", args: []string{"migrate", "up"}, wantCmd: "up", wantArgs: []string{}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, wantCmd: "up-to", wantArgs: []string{"2"}},
		{name: "status", args: []string{"migrate", "status"}, wantCmd: "status", wantArgs: []string{}},
		{name: "unknown", args: []string{"migrate", "lol"}, wantCmd: "lol", wantArgs: []string{}, wantErrStr: `"lol": no such command`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			if tt.wantErrStr != "" {
				assert.EqualError(t, err, tt.wantErrStr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCmd, gotCmd)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}

	t.Run("memory engine", func(t *testing.T) {
		env.cli.db = nil
		err := env.cli.run(context.Background(), []string{"admin", "migrate", "up"})
		assert.EqualError(t, err, "migrations need the postgres engine")
	})
}

func TestCommandLine_addUser(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher", "teacher@test.cd", "old", []string{user.RoleTeacher}, false)
	testutil.CreateUser(t, env.usrRepo, "Other", "other", "other@test.cd", "", nil, true)

	t.Run("usage", func(t *testing.T) {
		withPassword(t, "")
		assert.Equal(t, errHelp, env.cli.run(ctx, []string{"admin", "adduser", "-username", "boss"}))
		assert.Equal(t, errHelp, env.cli.run(ctx, []string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd"}))
	})

	t.Run("errors", func(t *testing.T) {
		withPassword(t, "s3cret")
		err := env.cli.run(ctx, []string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd", "-role", "king"})
		assert.EqualError(t, err, `unknown role "king"`)

		err = env.cli.run(ctx, []string{"admin", "adduser", "-username", "boss", "-email", "OTHER@test.cd"})
		assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
	})

	t.Run("create", func(t *testing.T) {
		withPassword(t, "s3cret")
		err := env.cli.run(ctx, []string{"admin", "adduser", "-username", " Boss ", "-email", "Boss@Test.cd", "-name", "The Boss"})
		require.NoError(t, err)

		usr, err := env.usrRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
		require.NoError(t, err)
		assert.Equal(t, "The Boss", usr.Name)
		assert.Equal(t, "boss@test.cd", usr.Email)
		assert.Equal(t, []string{user.RoleAdminOwner}, usr.Roles)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("s3cret"))
		assert.Contains(t, env.out.String(), `user "boss" saved`)
	})

	t.Run("update", func(t *testing.T) {
		withPassword(t, "n3w")
		err := env.cli.run(ctx, []string{"admin", "adduser", "-username", "teacher", "-email", "teacher@test.cd", "-role", user.RoleAdmin})
		require.NoError(t, err)

		usr, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.Equal(t, "Teacher", usr.Name)
		assert.Equal(t, []string{user.RoleTeacher, user.RoleAdmin}, usr.Roles)
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("n3w"))
	})
}

func TestCommandLine_resetPassword(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, env.usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []struct {
		name    string
		args    []string
		pwd     string
		wantErr error
	}{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", "AWE"}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)

			err := env.cli.run(ctx, append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)

			refreshed, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		})
	}
}

const seedYAML = `
users:
  - name: Ada Teacher
    username: ada
    email: ada@darasa.test
    password: ada-pwd
    roles: ["teacher:"]
  - name: Bob Student
    username: bob
    email: bob@darasa.test
    password: bob-pwd
    roles: ["student:"]
courses:
  - title: Intro to Go
    category: Programming
    level: beginner
    instructor: ada
    published: true
    students: [bob]
    materials:
      - title: Welcome
        kind: video
        url: https://videos.darasa.test/welcome.mp4
        duration_seconds: 300
      - title: Slides
        kind: pdf
        url: https://files.darasa.test/slides.pdf
    assessments:
      - title: Quiz 1
        passing_score: 60
        time_limit_minutes: 15
        published: true
        questions:
          - kind: multiple_choice
            prompt: 2 + 2?
            options: ["3", "4"]
            answer: "4"
            points: 2
          - kind: true_false
            prompt: Go has goroutines
            answer: "true"
`

func TestCommandLine_seed(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(file, []byte(seedYAML), 0o644))

	require.NoError(t, env.cli.run(ctx, []string{"admin", "seed", "-file", file}))
	assert.Contains(t, env.out.String(), "seeded 2 users and 1 courses")

	ada, err := env.usrRepo.GetUser(ctx, user.GetFilter{Username: "ada"})
	require.NoError(t, err)
	assert.NoError(t, ada.CheckPassword("ada-pwd"))
	bob, err := env.usrRepo.GetUser(ctx, user.GetFilter{Username: "bob"})
	require.NoError(t, err)

	courses, err := env.crsRepo.QueryCourses(ctx, &course.QueryFilter{AllVisible: true}, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	crs := courses[0]
	assert.Equal(t, "intro-to-go", crs.Slug)
	assert.Equal(t, "programming", crs.Category)
	assert.Equal(t, ada.ID, crs.InstructorID)

	mats, err := env.matRepo.QueryMaterials(ctx, crs.ID)
	require.NoError(t, err)
	if assert.Len(t, mats, 2) {
		assert.Equal(t, "Welcome", mats[0].Title)
		assert.Equal(t, 1, mats[0].Position)
		assert.Equal(t, "Slides", mats[1].Title)
	}

	asmts, err := env.asmRepo.QueryAssessments(ctx, crs.ID, true)
	require.NoError(t, err)
	require.Len(t, asmts, 1)
	qs, err := env.asmRepo.QueryQuestions(ctx, asmts[0].ID)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	_, err = env.enrRepo.GetEnrollment(ctx, bob.ID, crs.ID)
	assert.NoError(t, err)

	t.Run("users are not duplicated", func(t *testing.T) {
		require.NoError(t, env.cli.run(ctx, []string{"admin", "seed", "-file", file}))
		users, err := env.usrRepo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})

	t.Run("invalid question", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte(`
courses:
  - title: Broken
    instructor: ada
    assessments:
      - title: Quiz
        questions:
          - kind: true_false
            prompt: Is this valid?
            answer: maybe
`), 0o644))
		err := env.cli.run(ctx, []string{"admin", "seed", "-file", bad})
		assert.Error(t, err)
	})

	t.Run("unknown instructor", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("courses:\n  - title: Orphan\n    instructor: ghost\n"), 0o644))
		err := env.cli.run(ctx, []string{"admin", "seed", "-file", bad})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}

func TestCommandLine_hls(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	dir := filepath.Join(env.cli.videos.Dir(), "intro")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.m3u8"), []byte("#EXTM3U\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg000.ts"), make([]byte, 2048), 0o644))
	meta, err := json.Marshal(video.Meta{Title: "Intro to Go", DurationSeconds: 95, CreatedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), meta, 0o644))

	t.Run("list", func(t *testing.T) {
		env.out.Reset()
		require.NoError(t, env.cli.run(ctx, []string{"admin", "hls", "list"}))
		out := env.out.String()
		assert.Contains(t, out, "intro")
		assert.Contains(t, out, "Intro to Go")
		assert.Contains(t, out, "1m35s")
		assert.Contains(t, out, "1 hour ago")
	})

	t.Run("convert", func(t *testing.T) {
		env.conv.res = video.Result{Success: true, VideoID: "loops", Playlist: "/hls/loops/index.m3u8"}
		env.out.Reset()
		require.NoError(t, env.cli.run(ctx, []string{"admin", "hls", "convert", "-source", "https://youtu.be/abc", "-id", "loops"}))
		assert.Equal(t, "https://youtu.be/abc", env.conv.source)
		assert.Equal(t, "loops", env.conv.id)
		assert.Contains(t, env.out.String(), "/hls/loops/index.m3u8")
	})

	t.Run("convert failure", func(t *testing.T) {
		env.conv.res = video.Result{VideoID: "intro", Error: "video already exists"}
		err := env.cli.run(ctx, []string{"admin", "hls", "convert", "-source", "movie.mp4", "-id", "intro"})
		assert.EqualError(t, err, "video already exists")
	})
}
