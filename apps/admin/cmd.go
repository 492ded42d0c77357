package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/video"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type converter interface {
	Convert(ctx context.Context, source, id string) video.Result
}

type commandLine struct {
	db       *sqlx.DB // nil with the memory engine
	validate *validator.Validate

	usrRepo     user.Repository
	courses     course.Service
	enrollments enrollment.Service
	materials   material.Service
	assessments assessment.Service

	videos    *video.Library
	converter converter
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-role ROLE] - create or update a user, the password is prompted next")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  seed -file FILE - load users, courses, materials & assessments from a YAML file")
	fmt.Fprintln(cli.out, "  hls list - list the converted videos")
	fmt.Fprintln(cli.out, "  hls convert -source URL|FILE -id ID - convert a video to HLS")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		cmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		uname := cmd.String("username", "", "The user's username.")
		email := cmd.String("email", "", "The user's email.")
		name := cmd.String("name", "", "The user's full name.")
		role := cmd.String("role", user.RoleAdminOwner, "The user's role.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" || *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *name, *uname, *email, pwd, *role)

	case "resetpassword":
		cmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *uname, pwd)

	case "seed":
		cmd := flag.NewFlagSet("seed", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		file := cmd.String("file", "", "The YAML file to load.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.seed(ctx, *file)

	case "hls":
		return cli.hls(ctx, args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pwd)), nil
}
