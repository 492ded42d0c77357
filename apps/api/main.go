package main

import (
	"context"
	"expvar"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/video"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	ratelimitsvc "github.com/trezcool/darasa/services/ratelimit"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
	storagesvc "github.com/trezcool/darasa/services/storage"
)

func main() {
	conf := core.NewConfig()

	logger, err := shared.NewLogger(conf, "api")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err = run(conf, logger); err != nil {
		logger.Error("api stopped", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(conf *core.Config, logger *logsvc.RollbarLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Set up Dependencies

	logger.Info("application initializing", map[string]interface{}{"config": conf.String()})
	defer logger.Info("application stopped")

	repos, err := shared.OpenRepos(ctx, conf, true /* create & migrate */)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	validate, translator := shared.NewValidator()
	if err = core.ParseEmailTemplates(appfs.FS); err != nil {
		return errors.Wrap(err, "parsing email templates")
	}

	bucket, err := storagesvc.New(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up storage")
	}

	// with Redis, events & rate limits are shared by every API instance
	var (
		hub     *realtimesvc.Hub
		limiter ratelimitsvc.Limiter
		rdb     *goredis.Client
	)
	if conf.Redis.URL != "" {
		if rdb, err = realtimesvc.NewRedisClient(ctx, conf.Redis.URL); err != nil {
			return errors.Wrap(err, "connecting to redis")
		}
		defer func() { _ = rdb.Close() }()
		hub = realtimesvc.NewBusHub(realtimesvc.NewRedisBus(rdb, conf.Redis.Channel, logger), logger)
		limiter = ratelimitsvc.NewRedisLimiter(rdb, "darasa:ratelimit:auth", conf.Server.AuthRateLimit, conf.Server.AuthRateWindow)
	} else {
		hub = realtimesvc.NewHub(logger)
		limiter = ratelimitsvc.NewMemoryLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateWindow)
	}
	if err = hub.Start(ctx); err != nil {
		return errors.Wrap(err, "starting realtime hub")
	}

	mailSvc := emailsvc.New(conf, logger)
	usrSvc := user.NewService(repos.Users, mailSvc, conf)
	crsSvc := course.NewService(repos.Courses, hub, logger)
	enrSvc := enrollment.NewService(repos.Enrollments, crsSvc, usrSvc, mailSvc, hub, logger)
	matSvc := material.NewService(repos.Materials, crsSvc, enrSvc, bucket, hub, logger)
	crsSvc.OnDelete(matSvc.ReleaseCourse)
	asmSvc := assessment.NewService(repos.Assessments, crsSvc, enrSvc, usrSvc, mailSvc, hub, logger)
	bmSvc := bookmark.NewService(repos.Bookmarks, crsSvc)

	videos := video.NewLibrary(conf.Video.HLSDir, logger)
	yt := video.NewYouTube(&http.Client{Timeout: 30 * time.Second})
	converter := video.NewConverter(conf.Video, videos, yt, logger)

	health := []echoapi.HealthCheck{
		{Name: "database", Critical: true, Check: repos.Check},
		{Name: "ffmpeg", Check: func(context.Context) error {
			if !converter.FFmpegAvailable() {
				return errors.Errorf("%s not found", conf.Video.FFmpegBinary)
			}
			return nil
		}},
	}
	if rdb != nil {
		health = append(health, echoapi.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("subscribers", expvar.Func(func() interface{} { return hub.Subscribers() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Warn("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan struct{})
	var once sync.Once
	server := echoapi.NewServer(&echoapi.Options{
		Address:       conf.Server.Address,
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		EnrollmentSvc: enrSvc,
		MaterialSvc:   matSvc,
		AssessmentSvc: asmSvc,
		BookmarkSvc:   bmSvc,
		MailSvc:       mailSvc,
		Hub:           hub,
		Videos:        videos,
		Extractor:     video.NewExtractor(yt),
		Bucket:        localBucket(conf, bucket),
		AuthLimiter:   limiter,
		Health:        health,
	}, func() { once.Do(func() { close(shutdown) }) })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", map[string]interface{}{"address": conf.Server.Address})
		return server.Start()
	})

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-shutdown:
			logger.Warn("integrity issue caused shutdown")
		}

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Stop(sctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
		return nil
	})
	return g.Wait()
}

// localBucket returns the bucket when objects have to be served by the API itself.
func localBucket(conf *core.Config, bucket storagesvc.Bucket) storagesvc.Bucket {
	if conf.Storage.Driver == "gcs" {
		return nil
	}
	return bucket
}
