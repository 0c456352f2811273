package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrStorageUnavailable marks any failure of the underlying database.
// Callers surface it as a generic server error and never retry within
// the same request.
var ErrStorageUnavailable = errors.New("storage unavailable")

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}

// Store owns the messages table. All writes go through InsertIfAbsent;
// conflicting writers are serialized by the unique primary key, not by
// application locks.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertIfAbsent stores msg unless a row with the same message_id
// already exists. The conflict check and the insert are a single
// statement, so concurrent submissions of the same id resolve to
// exactly one Inserted and the rest Duplicate.
func (s *Store) InsertIfAbsent(ctx context.Context, msg Message) (InsertOutcome, error) {
	if msg.MessageID == "" {
		return "", fmt.Errorf("message_id is empty")
	}

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
INSERT INTO messages(message_id, from_msisdn, to_msisdn, ts, text, created_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(message_id) DO NOTHING;
`, msg.MessageID, msg.From, msg.To, msg.TS, msg.Text, createdAt)
	if err != nil {
		return "", storageErr("insert message", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", storageErr("insert message rows affected", err)
	}
	if n == 0 {
		return Duplicate, nil
	}
	return Inserted, nil
}

// List returns one page of messages matching f, ordered by
// (ts, message_id) ascending, plus the total match count before
// pagination.
func (s *Store) List(ctx context.Context, f Filter, limit, offset int) ([]Message, int, error) {
	limit = ClampLimit(limit)
	offset = ClampOffset(offset)

	where, args := buildWhere(f)

	var total int
	countQuery := "SELECT COUNT(*) FROM messages WHERE " + where + ";"
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("count messages", err)
	}

	query := `
SELECT message_id, from_msisdn, to_msisdn, ts, text
FROM messages
WHERE ` + where + `
ORDER BY ts ASC, message_id ASC
LIMIT ? OFFSET ?;
`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, storageErr("list messages", err)
	}
	defer rows.Close()

	items := make([]Message, 0, limit)
	for rows.Next() {
		var (
			m    Message
			text sql.NullString
		)
		if err := rows.Scan(&m.MessageID, &m.From, &m.To, &m.TS, &text); err != nil {
			return nil, 0, storageErr("scan message", err)
		}
		if text.Valid {
			m.Text = &text.String
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("iterate messages", err)
	}

	return items, total, nil
}

func buildWhere(f Filter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if f.FromExact != "" {
		clauses = append(clauses, "from_msisdn = ?")
		args = append(args, f.FromExact)
	}
	if f.Since != "" {
		clauses = append(clauses, "ts >= ?")
		args = append(args, f.Since)
	}
	if f.TextContains != "" {
		// SQLite LIKE is case-insensitive for ASCII.
		clauses = append(clauses, "text LIKE ?")
		args = append(args, "%"+f.TextContains+"%")
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

// Stats aggregates over the full store.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages;").Scan(&st.TotalMessages); err != nil {
		return Stats{}, storageErr("count messages", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT from_msisdn) FROM messages;").Scan(&st.SendersCount); err != nil {
		return Stats{}, storageErr("count senders", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT from_msisdn, COUNT(*) AS cnt
FROM messages
GROUP BY from_msisdn
ORDER BY cnt DESC, from_msisdn ASC
LIMIT 10;
`)
	if err != nil {
		return Stats{}, storageErr("top senders", err)
	}
	defer rows.Close()

	st.PerSender = make([]SenderCount, 0, 10)
	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return Stats{}, storageErr("scan sender", err)
		}
		st.PerSender = append(st.PerSender, sc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, storageErr("iterate senders", err)
	}

	var first, last sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM messages;").Scan(&first, &last); err != nil {
		return Stats{}, storageErr("timestamp bounds", err)
	}
	if first.Valid {
		st.FirstMessageTS = &first.String
	}
	if last.Valid {
		st.LastMessageTS = &last.String
	}

	return st, nil
}
