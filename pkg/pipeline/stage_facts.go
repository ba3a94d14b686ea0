package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/aggregate"
	"github.com/vyaparbazaar/featurex/pkg/db"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// affectedKeys resolves the entity id set for a fact stage: every id in full
// mode, ids touched since the watermark in incremental mode.
func (e *Engine) affectedKeys(ctx context.Context, st *runState,
	affected func(context.Context, time.Time) ([]string, error),
	all func(context.Context) ([]string, error),
) ([]string, error) {
	var ids []string
	err := e.withRetry(ctx, "affected_"+st.stage, func() error {
		var readErr error
		if st.mode == models.ModeFull {
			ids, readErr = all(ctx)
		} else {
			ids, readErr = affected(ctx, st.since)
		}
		return readErr
	})
	if err != nil {
		return nil, &db.SourceReadError{Source: st.stage, Err: err}
	}
	return ids, nil
}

// runPartitioned fans entity partitions out over the worker pool. Partitions
// are disjoint by construction, so no two workers write the same entity.
func (e *Engine) runPartitioned(ctx context.Context, ids []string, work func(ctx context.Context, part []string) error) error {
	parts := partitionKeys(ids, e.Cfg.Workers)
	pool := pond.NewPool(e.Cfg.Workers, pond.WithQueueSize(len(parts)+1))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, part := range parts {
		part := part
		group.SubmitErr(func() error {
			return work(groupCtx, part)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	return nil
}

// runCustomerFacts recomputes the three customer fact tables for every
// affected customer from full staged history.
func (e *Engine) runCustomerFacts(ctx context.Context, st *runState) error {
	var candidate time.Time
	err := e.withRetry(ctx, "max_staged_ingested_at", func() error {
		var readErr error
		candidate, readErr = e.Staging.MaxStagedIngestedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "staging", Err: err}
	}

	ids, err := e.affectedKeys(ctx, st, e.Staging.AffectedCustomers, e.Staging.AllCustomerIDs)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := e.runPartitioned(ctx, ids, func(ctx context.Context, part []string) error {
			return e.customerFactsPartition(ctx, st, part)
		}); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	st.candidate = candidate
	return nil
}

func (e *Engine) customerFactsPartition(ctx context.Context, st *runState, ids []string) error {
	var (
		customers []*models.StagedCustomer
		orders    []*models.StagedOrder
		clicks    []*models.StagedClickEvent
		appEvents []*models.StagedAppEvent
		tickets   []*models.StagedSupportTicket
		items     []*models.StagedOrderItem
		payments  []*models.StagedPayment
		reviews   []*models.StagedReview
		refunds   []*models.StagedRefund
	)
	err := e.withRetry(ctx, "read_customer_history", func() error {
		var readErr error
		if customers, readErr = e.Staging.CustomersByID(ctx, ids); readErr != nil {
			return readErr
		}
		if orders, readErr = e.Staging.OrdersByCustomer(ctx, ids); readErr != nil {
			return readErr
		}
		if clicks, readErr = e.Staging.ClickEventsByCustomer(ctx, ids); readErr != nil {
			return readErr
		}
		if appEvents, readErr = e.Staging.AppEventsByCustomer(ctx, ids); readErr != nil {
			return readErr
		}
		if tickets, readErr = e.Staging.TicketsByCustomer(ctx, ids); readErr != nil {
			return readErr
		}
		orderIDs := make([]string, 0, len(orders))
		for _, o := range orders {
			orderIDs = append(orderIDs, o.OrderID)
		}
		if items, readErr = e.Staging.ItemsByOrder(ctx, orderIDs); readErr != nil {
			return readErr
		}
		if payments, readErr = e.Staging.PaymentsByOrder(ctx, orderIDs); readErr != nil {
			return readErr
		}
		if reviews, readErr = e.Staging.ReviewsByOrder(ctx, orderIDs); readErr != nil {
			return readErr
		}
		refunds, readErr = e.Staging.RefundsByOrder(ctx, orderIDs)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "staging", Err: err}
	}
	st.rowsRead.Add(int64(len(customers) + len(orders) + len(clicks) + len(appEvents) +
		len(tickets) + len(items) + len(payments) + len(reviews) + len(refunds)))

	histories := make(map[string]*aggregate.CustomerHistory, len(ids))
	for _, id := range ids {
		histories[id] = &aggregate.CustomerHistory{
			Items:    map[string][]*models.StagedOrderItem{},
			Payments: map[string][]*models.StagedPayment{},
			Reviews:  map[string][]*models.StagedReview{},
			Refunds:  map[string][]*models.StagedRefund{},
		}
	}
	for _, c := range customers {
		if h, ok := histories[c.CustomerID]; ok {
			h.Customer = c
		}
	}
	orderOwner := make(map[string]string, len(orders))
	for _, o := range orders {
		if h, ok := histories[o.CustomerID]; ok {
			h.Orders = append(h.Orders, o)
			orderOwner[o.OrderID] = o.CustomerID
		}
	}
	for _, it := range items {
		if owner, ok := orderOwner[it.OrderID]; ok {
			h := histories[owner]
			h.Items[it.OrderID] = append(h.Items[it.OrderID], it)
		}
	}
	for _, p := range payments {
		if owner, ok := orderOwner[p.OrderID]; ok {
			h := histories[owner]
			h.Payments[p.OrderID] = append(h.Payments[p.OrderID], p)
		}
	}
	for _, r := range reviews {
		if owner, ok := orderOwner[r.OrderID]; ok {
			h := histories[owner]
			h.Reviews[r.OrderID] = append(h.Reviews[r.OrderID], r)
		}
	}
	for _, r := range refunds {
		if owner, ok := orderOwner[r.OrderID]; ok {
			h := histories[owner]
			h.Refunds[r.OrderID] = append(h.Refunds[r.OrderID], r)
		}
	}
	for _, c := range clicks {
		if h, ok := histories[c.CustomerID]; ok {
			h.Clicks = append(h.Clicks, c)
		}
	}
	for _, a := range appEvents {
		if h, ok := histories[a.CustomerID]; ok {
			h.AppEvents = append(h.AppEvents, a)
		}
	}
	for _, t := range tickets {
		if h, ok := histories[t.CustomerID]; ok {
			h.Tickets = append(h.Tickets, t)
		}
	}

	orderFacts := make([]*models.CustomerOrderFact, 0, len(ids))
	engagementFacts := make([]*models.CustomerEngagementFact, 0, len(ids))
	supportFacts := make([]*models.CustomerSupportFact, 0, len(ids))
	for _, id := range ids {
		h := histories[id]
		orderFacts = append(orderFacts, aggregate.BuildCustomerOrderFact(id, h, st.now))
		engagementFacts = append(engagementFacts, aggregate.BuildCustomerEngagementFact(id, h, st.now))
		supportFacts = append(supportFacts, aggregate.BuildCustomerSupportFact(id, h, st.now))
		st.entities.Inc()
	}

	err = e.withRetry(ctx, "write_customer_facts", func() error {
		if err := e.Facts.UpsertCustomerOrderFacts(ctx, orderFacts); err != nil {
			return err
		}
		if err := e.Facts.UpsertCustomerEngagementFacts(ctx, engagementFacts); err != nil {
			return err
		}
		return e.Facts.UpsertCustomerSupportFacts(ctx, supportFacts)
	})
	if err != nil {
		return &db.SinkWriteError{Table: "fact_customer_*", Err: err}
	}
	st.rowsWritten.Add(int64(len(orderFacts) + len(engagementFacts) + len(supportFacts)))
	return nil
}

// runProductFacts recomputes product sales facts for every affected product.
func (e *Engine) runProductFacts(ctx context.Context, st *runState) error {
	var candidate time.Time
	err := e.withRetry(ctx, "max_staged_ingested_at", func() error {
		var readErr error
		candidate, readErr = e.Staging.MaxStagedIngestedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "staging", Err: err}
	}

	ids, err := e.affectedKeys(ctx, st, e.Staging.AffectedProducts, e.Staging.AllProductIDs)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := e.runPartitioned(ctx, ids, func(ctx context.Context, part []string) error {
			return e.productFactsPartition(ctx, st, part)
		}); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	st.candidate = candidate
	return nil
}

func (e *Engine) productFactsPartition(ctx context.Context, st *runState, ids []string) error {
	var (
		products []*models.StagedProduct
		items    []*models.StagedOrderItem
		orders   []*models.StagedOrder
		reviews  []*models.StagedReview
		refunds  []*models.StagedRefund
	)
	err := e.withRetry(ctx, "read_product_history", func() error {
		var readErr error
		if products, readErr = e.Staging.ProductsByID(ctx, ids); readErr != nil {
			return readErr
		}
		if items, readErr = e.Staging.ItemsByProduct(ctx, ids); readErr != nil {
			return readErr
		}
		orderSet := map[string]bool{}
		for _, it := range items {
			orderSet[it.OrderID] = true
		}
		orderIDs := make([]string, 0, len(orderSet))
		for id := range orderSet {
			orderIDs = append(orderIDs, id)
		}
		if orders, readErr = e.Staging.OrdersByID(ctx, orderIDs); readErr != nil {
			return readErr
		}
		if reviews, readErr = e.Staging.ReviewsByOrder(ctx, orderIDs); readErr != nil {
			return readErr
		}
		refunds, readErr = e.Staging.RefundsByOrder(ctx, orderIDs)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "staging", Err: err}
	}
	st.rowsRead.Add(int64(len(products) + len(items) + len(orders) + len(reviews) + len(refunds)))

	productRows := make(map[string]*models.StagedProduct, len(products))
	for _, p := range products {
		productRows[p.ProductID] = p
	}
	orderRows := make(map[string]*models.StagedOrder, len(orders))
	for _, o := range orders {
		orderRows[o.OrderID] = o
	}
	reviewsByOrder := map[string][]*models.StagedReview{}
	for _, r := range reviews {
		reviewsByOrder[r.OrderID] = append(reviewsByOrder[r.OrderID], r)
	}
	refundsByOrder := map[string][]*models.StagedRefund{}
	for _, r := range refunds {
		refundsByOrder[r.OrderID] = append(refundsByOrder[r.OrderID], r)
	}
	itemsByProduct := map[string][]*models.StagedOrderItem{}
	for _, it := range items {
		itemsByProduct[it.ProductID] = append(itemsByProduct[it.ProductID], it)
	}

	facts := make([]*models.ProductSalesFact, 0, len(ids))
	for _, id := range ids {
		h := &aggregate.ProductHistory{
			Product: productRows[id],
			Items:   itemsByProduct[id],
			Orders:  orderRows,
			Reviews: reviewsByOrder,
			Refunds: refundsByOrder,
		}
		facts = append(facts, aggregate.BuildProductSalesFact(id, h, st.now))
		st.entities.Inc()
	}

	err = e.withRetry(ctx, "write_product_facts", func() error {
		return e.Facts.UpsertProductSalesFacts(ctx, facts)
	})
	if err != nil {
		return &db.SinkWriteError{Table: "fact_product_sales", Err: err}
	}
	st.rowsWritten.Add(int64(len(facts)))
	return nil
}

// runOrderFacts recomputes order economics for every affected order.
func (e *Engine) runOrderFacts(ctx context.Context, st *runState) error {
	var candidate time.Time
	err := e.withRetry(ctx, "max_staged_ingested_at", func() error {
		var readErr error
		candidate, readErr = e.Staging.MaxStagedIngestedAt(ctx)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "staging", Err: err}
	}

	ids, err := e.affectedKeys(ctx, st, e.Staging.AffectedOrders, e.Staging.AllOrderIDs)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := e.runPartitioned(ctx, ids, func(ctx context.Context, part []string) error {
			return e.orderFactsPartition(ctx, st, part)
		}); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	st.candidate = candidate
	return nil
}

func (e *Engine) orderFactsPartition(ctx context.Context, st *runState, ids []string) error {
	var (
		orders   []*models.StagedOrder
		items    []*models.StagedOrderItem
		payments []*models.StagedPayment
		reviews  []*models.StagedReview
		refunds  []*models.StagedRefund
	)
	err := e.withRetry(ctx, "read_order_history", func() error {
		var readErr error
		if orders, readErr = e.Staging.OrdersByID(ctx, ids); readErr != nil {
			return readErr
		}
		if items, readErr = e.Staging.ItemsByOrder(ctx, ids); readErr != nil {
			return readErr
		}
		if payments, readErr = e.Staging.PaymentsByOrder(ctx, ids); readErr != nil {
			return readErr
		}
		if reviews, readErr = e.Staging.ReviewsByOrder(ctx, ids); readErr != nil {
			return readErr
		}
		refunds, readErr = e.Staging.RefundsByOrder(ctx, ids)
		return readErr
	})
	if err != nil {
		return &db.SourceReadError{Source: "staging", Err: err}
	}
	st.rowsRead.Add(int64(len(orders) + len(items) + len(payments) + len(reviews) + len(refunds)))

	histories := make(map[string]*aggregate.OrderHistory, len(ids))
	for _, id := range ids {
		histories[id] = &aggregate.OrderHistory{}
	}
	for _, o := range orders {
		if h, ok := histories[o.OrderID]; ok {
			h.Order = o
		}
	}
	for _, it := range items {
		if h, ok := histories[it.OrderID]; ok {
			h.Items = append(h.Items, it)
		}
	}
	for _, p := range payments {
		if h, ok := histories[p.OrderID]; ok {
			h.Payments = append(h.Payments, p)
		}
	}
	for _, r := range reviews {
		if h, ok := histories[r.OrderID]; ok {
			h.Reviews = append(h.Reviews, r)
		}
	}
	for _, r := range refunds {
		if h, ok := histories[r.OrderID]; ok {
			h.Refunds = append(h.Refunds, r)
		}
	}

	facts := make([]*models.OrderEconomicsFact, 0, len(ids))
	for _, id := range ids {
		fact, err := aggregate.BuildOrderEconomicsFact(id, histories[id], st.now)
		if err != nil {
			// Entity-isolated: items or payments can land before their
			// order row. The order is recomputed when that row arrives.
			var aggErr *aggregate.AggregationError
			if errors.As(err, &aggErr) {
				e.Logger.Warn("Skipping order without staged order row",
					zap.String("order_id", id))
				st.rowsSkipped.Inc()
				continue
			}
			return err
		}
		facts = append(facts, fact)
		st.entities.Inc()
	}

	err = e.withRetry(ctx, "write_order_facts", func() error {
		return e.Facts.UpsertOrderEconomics(ctx, facts)
	})
	if err != nil {
		return &db.SinkWriteError{Table: "fact_order_economics", Err: err}
	}
	st.rowsWritten.Add(int64(len(facts)))
	return nil
}
