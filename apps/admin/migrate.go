package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errors.New("migrations need the postgres engine")
	}
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
