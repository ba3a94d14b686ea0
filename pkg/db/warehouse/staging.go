package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

func (db *DB) insertBatch(ctx context.Context, table, columns string, count int, appendRow func(batch driver.Batch, i int) error) error {
	if count == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`, db.Name, table, columns)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %s batch: %w", table, err)
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for i := 0; i < count; i++ {
		if err := appendRow(batch, i); err != nil {
			return fmt.Errorf("append to %s batch: %w", table, err)
		}
	}
	return batch.Send()
}

func (db *DB) InsertStagedCustomers(ctx context.Context, rows []*models.StagedCustomer) error {
	return db.insertBatch(ctx, StgCustomersTable,
		"customer_id, zip, city, state, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.Zip, r.City, r.State, r.IngestedAt)
		})
}

func (db *DB) InsertStagedOrders(ctx context.Context, rows []*models.StagedOrder) error {
	return db.insertBatch(ctx, StgOrdersTable,
		"order_id, customer_id, status, purchase_ts, delivered_ts, estimated_delivery_ts, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.OrderID, r.CustomerID, r.Status, r.PurchaseTs, r.DeliveredTs, r.EstimatedDeliveryTs, r.IngestedAt)
		})
}

func (db *DB) InsertStagedOrderItems(ctx context.Context, rows []*models.StagedOrderItem) error {
	return db.insertBatch(ctx, StgOrderItemsTable,
		"order_id, item_id, product_id, seller_id, price, freight_value, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.OrderID, r.ItemID, r.ProductID, r.SellerID, r.Price, r.FreightValue, r.IngestedAt)
		})
}

func (db *DB) InsertStagedPayments(ctx context.Context, rows []*models.StagedPayment) error {
	return db.insertBatch(ctx, StgPaymentsTable,
		"order_id, payment_type, value, installments, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.OrderID, r.PaymentType, r.Value, r.Installments, r.IngestedAt)
		})
}

func (db *DB) InsertStagedProducts(ctx context.Context, rows []*models.StagedProduct) error {
	return db.insertBatch(ctx, StgProductsTable,
		"product_id, category, subcategory, weight_g, dimensions, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.ProductID, r.Category, r.Subcategory, r.WeightG, r.Dimensions, r.IngestedAt)
		})
}

func (db *DB) InsertStagedClickEvents(ctx context.Context, rows []*models.StagedClickEvent) error {
	return db.insertBatch(ctx, StgClickEventsTable,
		"event_id, customer_id, ts, event_type, device, session_id, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.EventID, r.CustomerID, r.Ts, r.EventType, r.Device, r.SessionID, r.IngestedAt)
		})
}

func (db *DB) InsertStagedAppEvents(ctx context.Context, rows []*models.StagedAppEvent) error {
	return db.insertBatch(ctx, StgAppEventsTable,
		"event_id, customer_id, ts, screen, action, os, duration_s, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.EventID, r.CustomerID, r.Ts, r.Screen, r.Action, r.OS, r.DurationS, r.IngestedAt)
		})
}

func (db *DB) InsertStagedSupportTickets(ctx context.Context, rows []*models.StagedSupportTicket) error {
	return db.insertBatch(ctx, StgTicketsTable,
		"ticket_id, customer_id, created_at, resolved_at, category, priority, satisfaction_rating, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.TicketID, r.CustomerID, r.CreatedAt, r.ResolvedAt, r.Category, r.Priority, r.SatisfactionRating, r.IngestedAt)
		})
}

func (db *DB) InsertStagedReviews(ctx context.Context, rows []*models.StagedReview) error {
	return db.insertBatch(ctx, StgReviewsTable,
		"review_id, order_id, score, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.ReviewID, r.OrderID, r.Score, r.IngestedAt)
		})
}

func (db *DB) InsertStagedRefunds(ctx context.Context, rows []*models.StagedRefund) error {
	return db.insertBatch(ctx, StgRefundsTable,
		"refund_id, order_id, amount, reason, ingested_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.RefundID, r.OrderID, r.Amount, r.Reason, r.IngestedAt)
		})
}

func (db *DB) selectIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AffectedCustomers returns, sorted, every customer with at least one staged
// row ingested after since, in any source that feeds a customer fact.
// Reviews and refunds reach the customer through their order.
func (db *DB) AffectedCustomers(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT customer_id FROM (
			SELECT customer_id FROM "%[1]s"."%[2]s" WHERE ingested_at > ?
			UNION ALL
			SELECT customer_id FROM "%[1]s"."%[3]s" WHERE ingested_at > ?
			UNION ALL
			SELECT customer_id FROM "%[1]s"."%[4]s" WHERE ingested_at > ?
			UNION ALL
			SELECT customer_id FROM "%[1]s"."%[5]s" WHERE ingested_at > ?
			UNION ALL
			SELECT customer_id FROM "%[1]s"."%[6]s" WHERE ingested_at > ?
			UNION ALL
			SELECT o.customer_id FROM "%[1]s"."%[3]s" o WHERE o.order_id IN (
				SELECT order_id FROM "%[1]s"."%[7]s" WHERE ingested_at > ?
				UNION ALL
				SELECT order_id FROM "%[1]s"."%[8]s" WHERE ingested_at > ?
				UNION ALL
				SELECT order_id FROM "%[1]s"."%[9]s" WHERE ingested_at > ?
				UNION ALL
				SELECT order_id FROM "%[1]s"."%[10]s" WHERE ingested_at > ?
			)
		)
		WHERE customer_id != ''
		ORDER BY customer_id
	`, db.Name,
		StgCustomersTable, StgOrdersTable, StgClickEventsTable, StgAppEventsTable,
		StgTicketsTable, StgOrderItemsTable, StgPaymentsTable, StgReviewsTable,
		StgRefundsTable)
	return db.selectIDs(ctx, query,
		since, since, since, since, since, since, since, since, since)
}

// AffectedProducts returns every product touched since the watermark.
// Product facts read the order row itself for sale timestamps and distinct
// buyers, so a corrected order, review or refund shifts the metrics of every
// product in that order.
func (db *DB) AffectedProducts(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT product_id FROM (
			SELECT product_id FROM "%[1]s"."%[2]s" WHERE ingested_at > ?
			UNION ALL
			SELECT product_id FROM "%[1]s"."%[3]s" WHERE ingested_at > ?
			UNION ALL
			SELECT i.product_id FROM "%[1]s"."%[3]s" i WHERE i.order_id IN (
				SELECT order_id FROM "%[1]s"."%[4]s" WHERE ingested_at > ?
				UNION ALL
				SELECT order_id FROM "%[1]s"."%[5]s" WHERE ingested_at > ?
				UNION ALL
				SELECT order_id FROM "%[1]s"."%[6]s" WHERE ingested_at > ?
			)
		)
		WHERE product_id != ''
		ORDER BY product_id
	`, db.Name, StgProductsTable, StgOrderItemsTable, StgOrdersTable, StgReviewsTable, StgRefundsTable)
	return db.selectIDs(ctx, query, since, since, since, since, since)
}

func (db *DB) AffectedOrders(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT order_id FROM (
			SELECT order_id FROM "%[1]s"."%[2]s" WHERE ingested_at > ?
			UNION ALL
			SELECT order_id FROM "%[1]s"."%[3]s" WHERE ingested_at > ?
			UNION ALL
			SELECT order_id FROM "%[1]s"."%[4]s" WHERE ingested_at > ?
			UNION ALL
			SELECT order_id FROM "%[1]s"."%[5]s" WHERE ingested_at > ?
			UNION ALL
			SELECT order_id FROM "%[1]s"."%[6]s" WHERE ingested_at > ?
		)
		WHERE order_id != ''
		ORDER BY order_id
	`, db.Name, StgOrdersTable, StgOrderItemsTable, StgPaymentsTable, StgReviewsTable, StgRefundsTable)
	return db.selectIDs(ctx, query, since, since, since, since, since)
}

func (db *DB) AllCustomerIDs(ctx context.Context) ([]string, error) {
	return db.AffectedCustomers(ctx, time.Time{})
}

func (db *DB) AllProductIDs(ctx context.Context) ([]string, error) {
	return db.AffectedProducts(ctx, time.Time{})
}

func (db *DB) AllOrderIDs(ctx context.Context) ([]string, error) {
	return db.AffectedOrders(ctx, time.Time{})
}

// Full-history reads. All of these use FINAL: staged tables are
// ReplacingMergeTree and aggregation must see exactly one version per key.

func stagedSelect[T any](ctx context.Context, db *DB, table, keyCol, orderBy string, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT * FROM "%s"."%s" FINAL WHERE %s IN (?) ORDER BY %s`,
		db.Name, table, keyCol, orderBy,
	)
	var rows []*T
	if err := db.SelectWithFinal(ctx, &rows, query, ids); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return rows, nil
}

func (db *DB) CustomersByID(ctx context.Context, ids []string) ([]*models.StagedCustomer, error) {
	return stagedSelect[models.StagedCustomer](ctx, db, StgCustomersTable, "customer_id", "customer_id", ids)
}

func (db *DB) OrdersByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedOrder, error) {
	return stagedSelect[models.StagedOrder](ctx, db, StgOrdersTable, "customer_id", "order_id", customerIDs)
}

func (db *DB) OrdersByID(ctx context.Context, orderIDs []string) ([]*models.StagedOrder, error) {
	return stagedSelect[models.StagedOrder](ctx, db, StgOrdersTable, "order_id", "order_id", orderIDs)
}

func (db *DB) ItemsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedOrderItem, error) {
	return stagedSelect[models.StagedOrderItem](ctx, db, StgOrderItemsTable, "order_id", "order_id, item_id", orderIDs)
}

func (db *DB) ItemsByProduct(ctx context.Context, productIDs []string) ([]*models.StagedOrderItem, error) {
	return stagedSelect[models.StagedOrderItem](ctx, db, StgOrderItemsTable, "product_id", "order_id, item_id", productIDs)
}

func (db *DB) PaymentsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedPayment, error) {
	return stagedSelect[models.StagedPayment](ctx, db, StgPaymentsTable, "order_id", "order_id, payment_type", orderIDs)
}

func (db *DB) ProductsByID(ctx context.Context, ids []string) ([]*models.StagedProduct, error) {
	return stagedSelect[models.StagedProduct](ctx, db, StgProductsTable, "product_id", "product_id", ids)
}

func (db *DB) ClickEventsByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedClickEvent, error) {
	return stagedSelect[models.StagedClickEvent](ctx, db, StgClickEventsTable, "customer_id", "event_id", customerIDs)
}

func (db *DB) AppEventsByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedAppEvent, error) {
	return stagedSelect[models.StagedAppEvent](ctx, db, StgAppEventsTable, "customer_id", "event_id", customerIDs)
}

func (db *DB) TicketsByCustomer(ctx context.Context, customerIDs []string) ([]*models.StagedSupportTicket, error) {
	return stagedSelect[models.StagedSupportTicket](ctx, db, StgTicketsTable, "customer_id", "ticket_id", customerIDs)
}

func (db *DB) ReviewsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedReview, error) {
	return stagedSelect[models.StagedReview](ctx, db, StgReviewsTable, "order_id", "review_id", orderIDs)
}

func (db *DB) RefundsByOrder(ctx context.Context, orderIDs []string) ([]*models.StagedRefund, error) {
	return stagedSelect[models.StagedRefund](ctx, db, StgRefundsTable, "order_id", "refund_id", orderIDs)
}

var stagedTables = []string{
	StgCustomersTable, StgOrdersTable, StgOrderItemsTable, StgPaymentsTable,
	StgProductsTable, StgClickEventsTable, StgAppEventsTable, StgTicketsTable,
	StgReviewsTable, StgRefundsTable,
}

func (db *DB) MaxStagedIngestedAt(ctx context.Context) (time.Time, error) {
	var max time.Time
	for _, table := range stagedTables {
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
