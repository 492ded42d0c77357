// Command admin runs the maintenance tasks: migrations, users, seeding & video conversion.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/darasa/apps/shared"
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
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		panic(err)
	}
	logger := logsvc.NewZapLogger(zl.Named("admin"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, closeFn, err := newCommandLine(ctx, conf, logger)
	if err != nil {
		logger.Fatal("setting up admin", err)
	}
	defer closeFn()

	if err = cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		closeFn()
		logger.Sync()
		os.Exit(1)
	}
}

func newCommandLine(ctx context.Context, conf *core.Config, logger core.Logger) (*commandLine, func(), error) {
	repos, err := shared.OpenRepos(ctx, conf, false)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := repos.Close(); err != nil {
			logger.Warn("closing database", err)
		}
	}

	bucket, err := storagesvc.New(ctx, conf)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	validate, _ := shared.NewValidator()
	hub := realtimesvc.NewHub(logger)
	mailSvc := emailsvc.New(conf, logger)
	usrSvc := user.NewService(repos.Users, mailSvc, conf)
	crsSvc := course.NewService(repos.Courses, hub, logger)
	enrSvc := enrollment.NewService(repos.Enrollments, crsSvc, usrSvc, mailSvc, hub, logger)
	matSvc := material.NewService(repos.Materials, crsSvc, enrSvc, bucket, hub, logger)
	crsSvc.OnDelete(matSvc.ReleaseCourse)
	videos := video.NewLibrary(conf.Video.HLSDir, logger)

	return &commandLine{
		db:          repos.DB,
		validate:    validate,
		usrRepo:     repos.Users,
		courses:     crsSvc,
		enrollments: enrSvc,
		materials:   matSvc,
		assessments: assessment.NewService(repos.Assessments, crsSvc, enrSvc, usrSvc, mailSvc, hub, logger),
		videos:      videos,
		converter:   video.NewConverter(conf.Video, videos, video.NewYouTube(http.DefaultClient), logger),
		out:         os.Stdout,
	}, closeFn, nil
}
