// Package db opens ScyllaDB sessions and owns the archive schema.
package db

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Session struct {
	*gocql.Session
}

const archiveTable = `CREATE TABLE IF NOT EXISTS message_archive (
	connection_id bigint,
	id bigint,
	sender_id bigint,
	content text,
	type text,
	created_at timestamp,
	PRIMARY KEY (connection_id, id)
) WITH CLUSTERING ORDER BY (id DESC)`

func NewSession(hosts []string, keyspace string, log *zap.Logger) (*Session, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "db: connect to %v/%s", hosts, keyspace)
	}

	log.Info("connected to scylla", zap.Strings("hosts", hosts), zap.String("keyspace", keyspace))
	return &Session{Session: session}, nil
}

// EnsureKeyspace creates keyspace through the system keyspace if missing.
func EnsureKeyspace(hosts []string, keyspace string, log *zap.Logger) error {
	sys, err := NewSession(hosts, "system", log)
	if err != nil {
		return err
	}
	defer sys.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace)
	return errors.Wrap(sys.Query(stmt).Exec(), "db: create keyspace")
}

func (s *Session) EnsureArchiveSchema() error {
	return errors.Wrap(s.Query(archiveTable).Exec(), "db: create message_archive")
}

func (s *Session) DropArchive() error {
	return errors.Wrap(s.Query(`DROP TABLE IF EXISTS message_archive`).Exec(), "db: drop message_archive")
}
