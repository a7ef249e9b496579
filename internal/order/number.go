package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NumberGenerator issues globally unique, human-readable order numbers. Collision handling is the
// generator's responsibility; callers request exactly one number per order.
type NumberGenerator interface {
	Next(ctx context.Context) (string, error)
}

type sequenceNumberGenerator struct {
	db     *pgxpool.Pool
	prefix string
	clock  func() time.Time
}

// NewSequenceNumberGenerator formats numbers as PREFIX-YYYY-NNNNNN from a Postgres sequence.
func NewSequenceNumberGenerator(db *pgxpool.Pool, prefix string) NumberGenerator {
	return &sequenceNumberGenerator{db: db, prefix: prefix, clock: time.Now}
}

func (g *sequenceNumberGenerator) Next(ctx context.Context) (string, error) {
	var seq int64
	if err := g.db.QueryRow(ctx, `SELECT nextval('order_service.order_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("number generator: failed to draw sequence value: %w", err)
	}
	return FormatNumber(g.prefix, g.clock().UTC(), seq), nil
}

func FormatNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, at.Year(), seq)
}
