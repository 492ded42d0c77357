package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
)

type (
	seedFile struct {
		Users   []seedUser   `yaml:"users"`
		Courses []seedCourse `yaml:"courses"`
	}

	seedUser struct {
		Name     string   `yaml:"name"`
		Username string   `yaml:"username"`
		Email    string   `yaml:"email"`
		Password string   `yaml:"password"`
		Roles    []string `yaml:"roles"`
	}

	seedCourse struct {
		Title       string           `yaml:"title"`
		Description string           `yaml:"description"`
		Category    string           `yaml:"category"`
		Level       string           `yaml:"level"`
		Instructor  string           `yaml:"instructor"` // username
		Published   bool             `yaml:"published"`
		Students    []string         `yaml:"students"` // usernames
		Materials   []seedMaterial   `yaml:"materials"`
		Assessments []seedAssessment `yaml:"assessments"`
	}

	seedMaterial struct {
		Title           string `yaml:"title"`
		Kind            string `yaml:"kind"`
		URL             string `yaml:"url"`
		DurationSeconds int    `yaml:"duration_seconds"`
	}

	seedAssessment struct {
		Title            string         `yaml:"title"`
		Description      string         `yaml:"description"`
		TimeLimitMinutes int            `yaml:"time_limit_minutes"`
		PassingScore     float64        `yaml:"passing_score"`
		Published        bool           `yaml:"published"`
		Questions        []seedQuestion `yaml:"questions"`
	}

	seedQuestion struct {
		Kind    string   `yaml:"kind"`
		Prompt  string   `yaml:"prompt"`
		Options []string `yaml:"options"`
		Answer  string   `yaml:"answer"`
		Points  *int     `yaml:"points"`
	}
)

// seed loads a YAML fixture. Existing users are kept as they are; courses are always created.
func (cli *commandLine) seed(ctx context.Context, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}
	var data seedFile
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "decoding seed file")
	}

	users := make(map[string]user.User, len(data.Users))
	for _, su := range data.Users {
		usr, err := cli.seedUser(ctx, su)
		if err != nil {
			return errors.Wrapf(err, "seeding user %q", su.Username)
		}
		users[usr.Username] = usr
	}
	lookup := func(uname string) (user.User, error) {
		uname = core.CleanString(uname, true /* lower */)
		if usr, ok := users[uname]; ok {
			return usr, nil
		}
		usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
		if err != nil {
			return user.User{}, errors.Wrapf(err, "finding user %q", uname)
		}
		users[uname] = usr
		return usr, nil
	}

	for _, sc := range data.Courses {
		if err = cli.seedCourse(ctx, sc, lookup); err != nil {
			return errors.Wrapf(err, "seeding course %q", sc.Title)
		}
	}
	fmt.Fprintf(cli.out, "seeded %d users and %d courses\n", len(data.Users), len(data.Courses))
	return nil
}

func (cli *commandLine) seedUser(ctx context.Context, su seedUser) (user.User, error) {
	uname := core.CleanString(su.Username, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err == nil {
		return usr, nil
	}
	if !core.IsNotFound(err) {
		return user.User{}, err
	}

	email := core.CleanString(su.Email, true /* lower */)
	if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email); err != nil {
		return user.User{}, err
	}
	for _, role := range su.Roles {
		if !core.StringInSlice(role, user.AllRoles) {
			return user.User{}, errors.Errorf("unknown role %q", role)
		}
	}

	now := time.Now().UTC()
	usr = user.User{
		ID:        uuid.NewString(),
		Name:      core.CleanString(su.Name),
		Username:  uname,
		Email:     email,
		Roles:     su.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err = usr.SetPassword(su.Password); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}

func (cli *commandLine) seedCourse(ctx context.Context, sc seedCourse, lookup func(string) (user.User, error)) error {
	instructor, err := lookup(sc.Instructor)
	if err != nil {
		return err
	}
	actor := instructor.Actor()

	nc := course.NewCourse{
		Title:       sc.Title,
		Description: sc.Description,
		Category:    sc.Category,
		Level:       sc.Level,
		IsPublished: sc.Published,
	}
	if err = nc.Validate(cli.validate); err != nil {
		return err
	}
	crs, err := cli.courses.Create(ctx, actor, nc)
	if err != nil {
		return err
	}

	for _, sm := range sc.Materials {
		nm := material.NewMaterial{Title: sm.Title, Kind: sm.Kind, URL: sm.URL, DurationSeconds: sm.DurationSeconds}
		if err = nm.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "material %q", sm.Title)
		}
		if _, err = cli.materials.Add(ctx, actor, crs.ID, nm); err != nil {
			return errors.Wrapf(err, "material %q", sm.Title)
		}
	}

	for _, sa := range sc.Assessments {
		if err = cli.seedAssessment(ctx, actor, crs.ID, sa); err != nil {
			return errors.Wrapf(err, "assessment %q", sa.Title)
		}
	}

	for _, uname := range sc.Students {
		student, err := lookup(uname)
		if err != nil {
			return err
		}
		if _, err = cli.enrollments.Enroll(ctx, student.Actor(), crs.ID); err != nil {
			return errors.Wrapf(err, "enrolling %q", uname)
		}
	}
	return nil
}

func (cli *commandLine) seedAssessment(ctx context.Context, actor core.Actor, courseID string, sa seedAssessment) error {
	na := assessment.NewAssessment{
		Title:            sa.Title,
		Description:      sa.Description,
		TimeLimitMinutes: sa.TimeLimitMinutes,
		PassingScore:     sa.PassingScore,
		IsPublished:      sa.Published,
	}
	if err := na.Validate(cli.validate); err != nil {
		return err
	}
	asmt, err := cli.assessments.CreateAssessment(ctx, actor, courseID, na)
	if err != nil {
		return err
	}

	for i, sq := range sa.Questions {
		nq := assessment.NewQuestion{
			Kind:          sq.Kind,
			Prompt:        sq.Prompt,
			Options:       sq.Options,
			CorrectAnswer: sq.Answer,
			Points:        sq.Points,
		}
		if err = nq.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "question %d", i+1)
		}
		if _, err = cli.assessments.AddQuestion(ctx, actor, asmt.ID, nq); err != nil {
			return errors.Wrapf(err, "question %d", i+1)
		}
	}
	return nil
}
