package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0001_create_rooms.sql
var createRoomsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createRoomsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `DROP TABLE IF EXISTS movie_votes
--bun:split
DROP TABLE IF EXISTS room_movies
--bun:split
DROP TABLE IF EXISTS room_members
--bun:split
DROP TABLE IF EXISTS rooms`)
		},
	)
}
