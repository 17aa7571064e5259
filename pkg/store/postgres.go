package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	is_online BOOLEAN NOT NULL DEFAULT FALSE,
	last_active TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS connections (
	id BIGSERIAL PRIMARY KEY,
	user_a_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	user_b_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_pair
	ON connections (LEAST(user_a_id, user_b_id), GREATEST(user_a_id, user_b_id));

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	connection_id BIGINT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
	sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	read_at TIMESTAMPTZ,
	is_flagged BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_messages_connection ON messages (connection_id, created_at);

CREATE TABLE IF NOT EXISTS corrections (
	id BIGSERIAL PRIMARY KEY,
	message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	corrector_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	original_text TEXT NOT NULL,
	corrected_text TEXT NOT NULL,
	explanation TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_corrections_message ON corrections (message_id);
`

const messageColumns = `id, connection_id, sender_id, content, type, created_at, is_read, read_at, is_flagged`

// Postgres implements the store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "store: parse database url")
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "store: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "store: ping")
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return errors.Wrap(err, "store: migrate")
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) CreateUser(ctx context.Context, name string) (*model.User, error) {
	u := &model.User{Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name) VALUES ($1) RETURNING id, is_online, last_active`, name,
	).Scan(&u.ID, &u.IsOnline, &u.LastActive)
	if err != nil {
		return nil, errors.Wrap(err, "store: create user")
	}
	return u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, is_online, last_active FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.IsOnline, &u.LastActive)
	if err != nil {
		return nil, notFound(err, "store: get user")
	}
	return u, nil
}

func (s *Postgres) UpdateUser(ctx context.Context, id int64, patch model.UserPatch) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_online = COALESCE($2::boolean, is_online), last_active = COALESCE($3::timestamptz, last_active) WHERE id = $1`,
		id, patch.IsOnline, patch.LastActive,
	)
	if err != nil {
		return errors.Wrap(err, "store: update user")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "user %d", id)
	}
	return nil
}

func (s *Postgres) CreateConnection(ctx context.Context, userA, userB int64) (*model.Connection, error) {
	c := &model.Connection{UserAID: userA, UserBID: userB}
	var status string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO connections (user_a_id, user_b_id, status) VALUES ($1, $2, 'pending')
		 RETURNING id, status, created_at`,
		userA, userB,
	).Scan(&c.ID, &status, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, errors.Wrap(err, "store: create connection")
	}
	c.Status = model.ConnectionStatus(status)
	return c, nil
}

func (s *Postgres) UpdateConnectionStatus(ctx context.Context, id int64, status model.ConnectionStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE connections SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return errors.Wrap(err, "store: update connection")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "connection %d", id)
	}
	return nil
}

func (s *Postgres) FindConnection(ctx context.Context, f ConnectionFilter) (*model.Connection, error) {
	c := &model.Connection{}
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_a_id, user_b_id, status, created_at FROM connections
		 WHERE ($1::bigint = 0 OR id = $1)
		   AND ($2::bigint = 0 OR user_a_id = $2 OR user_b_id = $2)
		   AND ($3::text = '' OR status = $3)
		 ORDER BY id LIMIT 1`,
		f.ID, f.Party, string(f.Status),
	).Scan(&c.ID, &c.UserAID, &c.UserBID, &status, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, "store: find connection")
	}
	c.Status = model.ConnectionStatus(status)
	return c, nil
}

func (s *Postgres) ListConnectionIDs(ctx context.Context, userID int64, status model.ConnectionStatus) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM connections WHERE (user_a_id = $1 OR user_b_id = $1) AND status = $2 ORDER BY id`,
		userID, string(status),
	)
	if err != nil {
		return nil, errors.Wrap(err, "store: list connections")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, errors.Wrap(err, "store: list connections")
}

func (s *Postgres) CreateMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error) {
	typ := nm.Type
	if typ == "" {
		typ = model.TypeText
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (connection_id, sender_id, content, type) VALUES ($1, $2, $3, $4)
		 RETURNING `+messageColumns,
		nm.ConnectionID, nm.SenderID, nm.Content, string(typ),
	)
	m, err := scanMessage(row)
	if err != nil {
		return nil, errors.Wrap(err, "store: create message")
	}
	return m, nil
}

func (s *Postgres) FindMessage(ctx context.Context, id int64) (*model.Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "store: find message")
	}
	return m, nil
}

func (s *Postgres) ListMessages(ctx context.Context, connectionID int64) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE connection_id = $1 ORDER BY created_at, id`, connectionID)
	if err != nil {
		return nil, errors.Wrap(err, "store: list messages")
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store: list messages")
		}
		out = append(out, *m)
	}
	return out, errors.Wrap(rows.Err(), "store: list messages")
}

// messageWhere renders f as a WHERE clause over $1..$5.
const messageWhere = `
	(cardinality($1::bigint[]) = 0 OR connection_id = ANY($1))
	AND ($2::bigint = 0 OR sender_id <> $2)
	AND (NOT $3::boolean OR is_read = FALSE)
	AND (NOT $4::boolean OR id = ANY($5::bigint[]))`

func messageArgs(f MessageFilter) []any {
	conns := f.ConnectionIDs
	if conns == nil {
		conns = []int64{}
	}
	ids := f.IDs
	if ids == nil {
		ids = []int64{}
	}
	return []any{conns, f.SenderNot, f.UnreadOnly, f.RestrictIDs, ids}
}

func (s *Postgres) UpdateManyMessages(ctx context.Context, f MessageFilter, patch MessagePatch) ([]int64, error) {
	args := append(messageArgs(f), patch.ReadAt)
	rows, err := s.pool.Query(ctx,
		`UPDATE messages SET is_read = TRUE, read_at = $6::timestamptz WHERE`+messageWhere+` RETURNING id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "store: update messages")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, errors.Wrap(err, "store: update messages")
	}
	return ids, nil
}

func (s *Postgres) CountMessages(ctx context.Context, f MessageFilter) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE`+messageWhere, messageArgs(f)...).Scan(&n)
	return n, errors.Wrap(err, "store: count messages")
}

func (s *Postgres) CreateCorrection(ctx context.Context, nc model.NewCorrection) (*model.Correction, error) {
	c := &model.Correction{
		MessageID:     nc.MessageID,
		CorrectorID:   nc.CorrectorID,
		OriginalText:  nc.OriginalText,
		CorrectedText: nc.CorrectedText,
		Explanation:   nc.Explanation,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO corrections (message_id, corrector_id, original_text, corrected_text, explanation)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		nc.MessageID, nc.CorrectorID, nc.OriginalText, nc.CorrectedText, nc.Explanation,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "store: create correction")
	}
	return c, nil
}

const correctionColumns = `c.id, c.message_id, c.corrector_id, c.original_text, c.corrected_text, c.explanation, c.created_at`

func (s *Postgres) FindCorrection(ctx context.Context, id int64) (*model.Correction, error) {
	c, err := scanCorrection(s.pool.QueryRow(ctx,
		`SELECT `+correctionColumns+` FROM corrections c WHERE c.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "store: find correction")
	}
	return c, nil
}

func (s *Postgres) ListCorrections(ctx context.Context, f CorrectionFilter) ([]model.Correction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+correctionColumns+` FROM corrections c JOIN messages m ON m.id = c.message_id
		 WHERE ($1::bigint = 0 OR c.message_id = $1) AND ($2::bigint = 0 OR m.sender_id = $2)
		 ORDER BY c.created_at DESC, c.id DESC LIMIT $3`,
		f.MessageID, f.MessageSender, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "store: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store: list corrections")
		}
		out = append(out, *c)
	}
	return out, errors.Wrap(rows.Err(), "store: list corrections")
}

func (s *Postgres) DeleteCorrection(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM corrections WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "store: delete correction")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	var typ string
	if err := row.Scan(&m.ID, &m.ConnectionID, &m.SenderID, &m.Content, &typ,
		&m.CreatedAt, &m.IsRead, &m.ReadAt, &m.IsFlagged); err != nil {
		return nil, err
	}
	m.Type = model.MessageType(typ)
	return m, nil
}

func scanCorrection(row pgx.Row) (*model.Correction, error) {
	c := &model.Correction{}
	if err := row.Scan(&c.ID, &c.MessageID, &c.CorrectorID, &c.OriginalText,
		&c.CorrectedText, &c.Explanation, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, op)
}
