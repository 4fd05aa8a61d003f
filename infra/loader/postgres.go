package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const DefaultInventoryTable = "vending_inventory"

// PostgresSource reads one row per selection: (selection text, price numeric, quantity numeric).
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	if table == "" {
		table = DefaultInventoryTable
	}
	return &PostgresSource{db: db, table: table}
}

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot ping db: %w", err)
	}
	return db, nil
}

func (s *PostgresSource) Load(ctx context.Context) (item.Inventory, error) {
	query := fmt.Sprintf("SELECT selection, price, quantity FROM %s", pq.QuoteIdentifier(s.table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResource, s.table, err)
	}
	defer rows.Close()

	inventory := make(item.Inventory)
	for rows.Next() {
		var key string
		var price, quantity decimal.Decimal
		if err := rows.Scan(&key, &price, &quantity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		s, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		inventory[s] = item.Item{Price: price, Quantity: quantity}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if len(inventory) == 0 {
		return nil, fmt.Errorf("%w: table %s is empty", ErrInvalidResource, s.table)
	}
	return inventory, nil
}
