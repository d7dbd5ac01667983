package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// schema is idempotent and applied on every start.
const schema = `
CREATE TABLE IF NOT EXISTS photos (
	id            BIGSERIAL PRIMARY KEY,
	caption       TEXT        NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	tags          TEXT[]      NOT NULL DEFAULT '{}',
	owner         TEXT        NOT NULL,
	owner_name    TEXT        NOT NULL DEFAULT '',
	blob_key      TEXT        NOT NULL,
	thumbnail     BYTEA,
	thumbnail_type TEXT       NOT NULL DEFAULT '',
	thumbnailed   BOOLEAN     NOT NULL DEFAULT FALSE,
	placeholder   TEXT        NOT NULL DEFAULT '',
	private       BOOLEAN     NOT NULL DEFAULT FALSE,
	content_type  TEXT        NOT NULL,
	comments      JSONB       NOT NULL DEFAULT '[]'::jsonb,
	CONSTRAINT photos_thumbnail_state CHECK ((thumbnail IS NOT NULL) = thumbnailed)
);

CREATE INDEX IF NOT EXISTS photos_owner_idx ON photos (owner);
CREATE INDEX IF NOT EXISTS photos_tags_idx ON photos USING GIN (tags);
CREATE INDEX IF NOT EXISTS photos_public_idx ON photos (id) WHERE private = FALSE;
CREATE INDEX IF NOT EXISTS photos_pending_thumbnail_idx ON photos (id) WHERE thumbnailed = FALSE;
`

// Migrate creates the tables and indexes the application needs
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Msg("Database schema is up to date")
	return nil
}
