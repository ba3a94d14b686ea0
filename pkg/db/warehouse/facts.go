package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

func (db *DB) UpsertCustomerOrderFacts(ctx context.Context, rows []*models.CustomerOrderFact) error {
	return db.insertBatch(ctx, FactCustomerOrdersTable,
		"customer_id, order_count, delivered_count, cancelled_count, total_spend, total_freight, "+
			"avg_order_value, max_order_value, first_purchase_ts, last_purchase_ts, installments_max, "+
			"payment_types, review_count, avg_review_score, refund_count, refund_total, city, state, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.OrderCount, r.DeliveredCount, r.CancelledCount,
				r.TotalSpend, r.TotalFreight, r.AvgOrderValue, r.MaxOrderValue,
				r.FirstPurchaseTs, r.LastPurchaseTs, r.InstallmentsMax, r.PaymentTypes,
				r.ReviewCount, r.AvgReviewScore, r.RefundCount, r.RefundTotal,
				r.City, r.State, r.ComputedAt)
		})
}

func (db *DB) UpsertCustomerEngagementFacts(ctx context.Context, rows []*models.CustomerEngagementFact) error {
	return db.insertBatch(ctx, FactCustomerEngagementTable,
		"customer_id, web_event_count, session_count, page_view_count, add_to_cart_count, "+
			"purchase_events, conversion_rate, device_count, app_event_count, app_duration_s, "+
			"active_days, last_seen_ts, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.WebEventCount, r.SessionCount, r.PageViewCount,
				r.AddToCartCount, r.PurchaseEvents, r.ConversionRate, r.DeviceCount,
				r.AppEventCount, r.AppDurationS, r.ActiveDays, r.LastSeenTs, r.ComputedAt)
		})
}

func (db *DB) UpsertCustomerSupportFacts(ctx context.Context, rows []*models.CustomerSupportFact) error {
	return db.insertBatch(ctx, FactCustomerSupportTable,
		"customer_id, ticket_count, open_ticket_count, high_priority_count, "+
			"avg_resolution_hours, avg_satisfaction, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.CustomerID, r.TicketCount, r.OpenTicketCount, r.HighPriorityCount,
				r.AvgResolutionHours, r.AvgSatisfaction, r.ComputedAt)
		})
}

func (db *DB) UpsertProductSalesFacts(ctx context.Context, rows []*models.ProductSalesFact) error {
	return db.insertBatch(ctx, FactProductSalesTable,
		"product_id, category, subcategory, units_sold, revenue, freight, order_count, "+
			"distinct_buyers, avg_item_price, first_sold_ts, last_sold_ts, review_count, "+
			"avg_review_score, refund_count, refund_amount, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.ProductID, r.Category, r.Subcategory, r.UnitsSold, r.Revenue,
				r.Freight, r.OrderCount, r.DistinctBuyers, r.AvgItemPrice,
				r.FirstSoldTs, r.LastSoldTs, r.ReviewCount, r.AvgReviewScore,
				r.RefundCount, r.RefundAmount, r.ComputedAt)
		})
}

func (db *DB) UpsertOrderEconomics(ctx context.Context, rows []*models.OrderEconomicsFact) error {
	return db.insertBatch(ctx, FactOrderEconomicsTable,
		"order_id, customer_id, status, purchase_ts, item_count, goods_value, freight_value, "+
			"payment_value, installments_max, payment_types, review_score, refund_amount, "+
			"delivery_days, delivery_delay_days, computed_at",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.OrderID, r.CustomerID, r.Status, r.PurchaseTs, r.ItemCount,
				r.GoodsValue, r.FreightValue, r.PaymentValue, r.InstallmentsMax,
				r.PaymentTypes, r.ReviewScore, r.RefundAmount,
				r.DeliveryDays, r.DeliveryDelayDays, r.ComputedAt)
		})
}

func factSelect[T any](ctx context.Context, db *DB, table, keyCol string, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT * FROM "%s"."%s" FINAL WHERE %s IN (?) ORDER BY %s`,
		db.Name, table, keyCol, keyCol,
	)
	var rows []*T
	if err := db.SelectWithFinal(ctx, &rows, query, ids); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return rows, nil
}

func (db *DB) CustomerOrderFactsByID(ctx context.Context, ids []string) ([]*models.CustomerOrderFact, error) {
	return factSelect[models.CustomerOrderFact](ctx, db, FactCustomerOrdersTable, "customer_id", ids)
}

func (db *DB) EngagementFactsByID(ctx context.Context, ids []string) ([]*models.CustomerEngagementFact, error) {
	return factSelect[models.CustomerEngagementFact](ctx, db, FactCustomerEngagementTable, "customer_id", ids)
}

func (db *DB) SupportFactsByID(ctx context.Context, ids []string) ([]*models.CustomerSupportFact, error) {
	return factSelect[models.CustomerSupportFact](ctx, db, FactCustomerSupportTable, "customer_id", ids)
}

func (db *DB) AllProductSalesFacts(ctx context.Context) ([]*models.ProductSalesFact, error) {
	query := fmt.Sprintf(
		`SELECT * FROM "%s"."%s" FINAL ORDER BY product_id`,
		db.Name, FactProductSalesTable,
	)
	var rows []*models.ProductSalesFact
	if err := db.SelectWithFinal(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("read %s: %w", FactProductSalesTable, err)
	}
	return rows, nil
}

func (db *DB) OrderEconomicsByMonth(ctx context.Context, months []string) ([]*models.OrderEconomicsFact, error) {
	if len(months) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT * FROM "%s"."%s" FINAL WHERE formatDateTime(purchase_ts, '%%Y-%%m', 'UTC') IN (?) ORDER BY order_id`,
		db.Name, FactOrderEconomicsTable,
	)
	var rows []*models.OrderEconomicsFact
	if err := db.SelectWithFinal(ctx, &rows, query, months); err != nil {
		return nil, fmt.Errorf("read %s: %w", FactOrderEconomicsTable, err)
	}
	return rows, nil
}

func (db *DB) AffectedCustomerFacts(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT customer_id FROM (
			SELECT customer_id FROM "%[1]s"."%[2]s" WHERE computed_at > ?
			UNION ALL
			SELECT customer_id FROM "%[1]s"."%[3]s" WHERE computed_at > ?
			UNION ALL
			SELECT customer_id FROM "%[1]s"."%[4]s" WHERE computed_at > ?
		)
		ORDER BY customer_id
	`, db.Name, FactCustomerOrdersTable, FactCustomerEngagementTable, FactCustomerSupportTable)
	return db.selectIDs(ctx, query, since, since, since)
}

func (db *DB) AffectedProductFacts(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT product_id FROM "%s"."%s" WHERE computed_at > ? ORDER BY product_id`,
		db.Name, FactProductSalesTable,
	)
	return db.selectIDs(ctx, query, since)
}

func (db *DB) AffectedMonths(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT formatDateTime(purchase_ts, '%%Y-%%m', 'UTC') AS month
		 FROM "%s"."%s" WHERE computed_at > ? ORDER BY month`,
		db.Name, FactOrderEconomicsTable,
	)
	return db.selectIDs(ctx, query, since)
}

func (db *DB) AllCustomerFactIDs(ctx context.Context) ([]string, error) {
	return db.AffectedCustomerFacts(ctx, time.Time{})
}

func (db *DB) AllMonths(ctx context.Context) ([]string, error) {
	return db.AffectedMonths(ctx, time.Time{})
}

func (db *DB) maxComputedAt(ctx context.Context, tables ...string) (time.Time, error) {
	var max time.Time
	for _, table := range tables {
		query := fmt.Sprintf(`SELECT max(computed_at) FROM "%s"."%s"`, db.Name, table)
		var t time.Time
		if err := db.QueryRow(ctx, query).Scan(&t); err != nil {
			return time.Time{}, fmt.Errorf("max computed_at of %s: %w", table, err)
		}
		if t.After(max) {
			max = t
		}
	}
	return max, nil
}

func (db *DB) MaxCustomerFactComputedAt(ctx context.Context) (time.Time, error) {
	return db.maxComputedAt(ctx, FactCustomerOrdersTable, FactCustomerEngagementTable, FactCustomerSupportTable)
}

func (db *DB) MaxProductFactComputedAt(ctx context.Context) (time.Time, error) {
	return db.maxComputedAt(ctx, FactProductSalesTable)
}

func (db *DB) MaxOrderFactComputedAt(ctx context.Context) (time.Time, error) {
	return db.maxComputedAt(ctx, FactOrderEconomicsTable)
}
