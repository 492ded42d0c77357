package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/video"
	ratelimitsvc "github.com/trezcool/darasa/services/ratelimit"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
	storagesvc "github.com/trezcool/darasa/services/storage"
)

type (
	Options struct {
		Address        string
		Conf           *core.Config
		DisableReqLogs bool
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator

		UserSvc       user.Service
		CourseSvc     course.Service
		EnrollmentSvc enrollment.Service
		MaterialSvc   material.Service
		AssessmentSvc assessment.Service
		BookmarkSvc   bookmark.Service
		MailSvc       core.EmailService

		Hub       *realtimesvc.Hub
		Videos    *video.Library
		Extractor *video.Extractor
		// Bucket is served under /storage when set (local driver).
		Bucket      storagesvc.Bucket
		AuthLimiter ratelimitsvc.Limiter
		Health      []HealthCheck
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API server.
// signalShutdown is called when a handler reports an unrecoverable error.
func NewServer(opts *Options, signalShutdown func()) Server {
	s := &server{
		opts: opts,
		app:  newEcho(opts, signalShutdown),
	}
	s.setup()
	return s
}

func newEcho(opts *Options, signalShutdown func()) *echo.Echo {
	conf := opts.Conf
	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Debug = conf.Debug

	app.Pre(middleware.RemoveTrailingSlash())
	if !opts.DisableReqLogs {
		app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.CORSOrigins) > 0 {
		app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: conf.Server.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	app.HTTPErrorHandler = newAppHTTPErrorHandler(opts.Logger, opts.Translator, signalShutdown)
	return app
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.GET("/", s.home)
	registerHealthAPI(s.app, &healthApi{build: conf.Build, checks: s.opts.Health})
	registerVideoAPI(s.app, &videoApi{library: s.opts.Videos, extractor: s.opts.Extractor})
	if s.opts.Bucket != nil {
		s.app.GET("/storage/*", serveBucket(s.opts.Bucket))
	}
	if conf.Server.IDEDir != "" {
		s.app.GET("/judge0-ide/*", serveDir(conf.Server.IDEDir))
	}

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf)
	optionalJWT := optionalJWTMiddleware(conf)
	rateLimit := rateLimitMiddleware(s.opts.AuthLimiter, s.opts.Logger)

	usrApi := &userApi{
		svc:      s.opts.UserSvc,
		auth:     authenticator{conf: conf, svc: s.opts.UserSvc},
		validate: s.opts.Validate,
		logger:   s.opts.Logger,
	}
	registerAuthAPI(v1, jwt, rateLimit, usrApi)
	registerUserAPI(v1, jwt, usrApi)
	registerCourseAPI(v1, jwt, optionalJWT, &courseApi{
		svc:         s.opts.CourseSvc,
		enrollments: s.opts.EnrollmentSvc,
		validate:    s.opts.Validate,
	})
	registerMaterialAPI(v1, jwt, &materialApi{svc: s.opts.MaterialSvc, validate: s.opts.Validate})
	registerAssessmentAPI(v1, jwt, &assessmentApi{svc: s.opts.AssessmentSvc, validate: s.opts.Validate})
	registerBookmarkAPI(v1, jwt, &bookmarkApi{svc: s.opts.BookmarkSvc, validate: s.opts.Validate})
	registerNotificationAPI(v1, jwt, &notificationApi{mailSvc: s.opts.MailSvc, validate: s.opts.Validate})
	if s.opts.Hub != nil {
		registerEventsAPI(v1, jwt, &eventsApi{hub: s.opts.Hub, logger: s.opts.Logger})
	}
}

func (s *server) Start() error {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "starting server")
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

// HLSOptions configure the standalone HLS file server.
type HLSOptions struct {
	Address        string
	Conf           *core.Config
	DisableReqLogs bool
	Logger         core.Logger
	Translator     ut.Translator
	Videos         *video.Library
}

// NewHLSServer only serves the video library: health, listing and the HLS files.
func NewHLSServer(opts *HLSOptions) Server {
	apiOpts := &Options{
		Address:        opts.Address,
		Conf:           opts.Conf,
		DisableReqLogs: opts.DisableReqLogs,
		Logger:         opts.Logger,
		Translator:     opts.Translator,
		Videos:         opts.Videos,
	}
	s := &server{opts: apiOpts, app: newEcho(apiOpts, nil)}
	s.app.GET("/health", (&healthApi{build: opts.Conf.Build}).live)
	registerVideoAPI(s.app, &videoApi{library: opts.Videos})
	return s
}
