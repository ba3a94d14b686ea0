package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// Raw reads. The landing tables are append-only, so a plain scan filtered on
// ingestion time is the whole read path.

func rawSelect[T any](ctx context.Context, db *DB, table, orderBy string, since time.Time) ([]*T, error) {
	query := fmt.Sprintf(
		`SELECT * FROM "%s"."%s" WHERE ingested_at > ? ORDER BY %s`,
		db.Name, table, orderBy,
	)
	var rows []*T
	if err := db.Select(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return rows, nil
}

func (db *DB) RawCustomers(ctx context.Context, since time.Time) ([]*models.RawCustomer, error) {
	return rawSelect[models.RawCustomer](ctx, db, RawCustomersTable, "ingested_at, customer_id", since)
}

func (db *DB) RawOrders(ctx context.Context, since time.Time) ([]*models.RawOrder, error) {
	return rawSelect[models.RawOrder](ctx, db, RawOrdersTable, "ingested_at, order_id", since)
}

func (db *DB) RawOrderItems(ctx context.Context, since time.Time) ([]*models.RawOrderItem, error) {
	return rawSelect[models.RawOrderItem](ctx, db, RawOrderItemsTable, "ingested_at, order_id, item_id", since)
}

func (db *DB) RawPayments(ctx context.Context, since time.Time) ([]*models.RawPayment, error) {
	return rawSelect[models.RawPayment](ctx, db, RawPaymentsTable, "ingested_at, order_id", since)
}

func (db *DB) RawProducts(ctx context.Context, since time.Time) ([]*models.RawProduct, error) {
	return rawSelect[models.RawProduct](ctx, db, RawProductsTable, "ingested_at, product_id", since)
}

func (db *DB) RawClickEvents(ctx context.Context, since time.Time) ([]*models.RawClickEvent, error) {
	return rawSelect[models.RawClickEvent](ctx, db, RawClickEventsTable, "ingested_at, event_id", since)
}

func (db *DB) RawAppEvents(ctx context.Context, since time.Time) ([]*models.RawAppEvent, error) {
	return rawSelect[models.RawAppEvent](ctx, db, RawAppEventsTable, "ingested_at, event_id", since)
}

func (db *DB) RawSupportTickets(ctx context.Context, since time.Time) ([]*models.RawSupportTicket, error) {
	return rawSelect[models.RawSupportTicket](ctx, db, RawTicketsTable, "ingested_at, ticket_id", since)
}

func (db *DB) RawReviews(ctx context.Context, since time.Time) ([]*models.RawReview, error) {
	return rawSelect[models.RawReview](ctx, db, RawReviewsTable, "ingested_at, review_id", since)
}

func (db *DB) RawRefunds(ctx context.Context, since time.Time) ([]*models.RawRefund, error) {
	return rawSelect[models.RawRefund](ctx, db, RawRefundsTable, "ingested_at, refund_id", since)
}

var rawTables = []string{
	RawCustomersTable, RawOrdersTable, RawOrderItemsTable, RawPaymentsTable,
	RawProductsTable, RawClickEventsTable, RawAppEventsTable, RawTicketsTable,
	RawReviewsTable, RawRefundsTable,
}

// MaxIngestedAt returns the high edge of the raw stream across every landing
// table. An empty warehouse returns the zero time.
func (db *DB) MaxIngestedAt(ctx context.Context) (time.Time, error) {
	var max time.Time
	for _, table := range rawTables {
		query := fmt.Sprintf(`SELECT max(ingested_at) FROM "%s"."%s"`, db.Name, table)
		var t time.Time
		if err := db.QueryRow(ctx, query).Scan(&t); err != nil {
			return time.Time{}, fmt.Errorf("max ingested_at of %s: %w", table, err)
		}
		if t.After(max) {
			max = t
		}
	}
	return max, nil
}
