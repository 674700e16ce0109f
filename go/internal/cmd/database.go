package main

import (
	"context"
	"database/sql"

	"github.com/mcdev12/countdown/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	database, err := dbconfig.Open(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("dsn", dbCfg.Redacted()).
		Int("max_open_conns", dbCfg.MaxOpenConns).
		Msg("connected to database")
	return database, nil
}
