// Package shared builds the dependencies the API, HLS & admin binaries have in common.
package shared

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
)

// NewLogger returns the Rollbar backed logger; Rollbar is only enabled outside debug mode.
func NewLogger(conf *core.Config, name string) (*logsvc.RollbarLogger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl.Named(name), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}

// NewValidator registers every domain validator & translation.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	material.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)
	return validate, translator
}

// Repos are the repositories of the configured database engine.
type Repos struct {
	Users       user.Repository
	Courses     course.Repository
	Enrollments enrollment.Repository
	Materials   material.Repository
	Assessments assessment.Repository
	Bookmarks   bookmark.Repository

	// DB is nil with the memory engine.
	DB *sqlx.DB
}

// OpenRepos connects to postgres (creating & migrating the database when asked to),
// or returns in-memory repositories for the memory engine.
func OpenRepos(ctx context.Context, conf *core.Config, setUp bool) (*Repos, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		db := inmemdb.Open()
		return &Repos{
			Users:       inmemdb.NewUserRepository(db),
			Courses:     inmemdb.NewCourseRepository(db),
			Enrollments: inmemdb.NewEnrollmentRepository(db),
			Materials:   inmemdb.NewMaterialRepository(db),
			Assessments: inmemdb.NewAssessmentRepository(db),
			Bookmarks:   inmemdb.NewBookmarkRepository(db),
		}, nil
	case "", EnginePostgres:
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	if setUp {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if setUp {
		if err = database.Migrate(ctx, db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Repos{
		Users:       sqlxrepos.NewUserRepository(db),
		Courses:     sqlxrepos.NewCourseRepository(db),
		Enrollments: sqlxrepos.NewEnrollmentRepository(db),
		Materials:   sqlxrepos.NewMaterialRepository(db),
		Assessments: sqlxrepos.NewAssessmentRepository(db),
		Bookmarks:   sqlxrepos.NewBookmarkRepository(db),
		DB:          db,
	}, nil
}

// Check pings the database; the memory engine is always up.
func (r *Repos) Check(ctx context.Context) error {
	if r.DB == nil {
		return nil
	}
	return database.StatusCheck(ctx, r.DB)
}

func (r *Repos) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
