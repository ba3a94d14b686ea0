package staging

import (
	"strconv"
	"strings"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// Each normalizer maps one raw row to its staged projection, or returns a
// MalformedRowError. Normalizers have no side effects beyond the per-run
// counter kept by the caller.

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseTs(source, key, field, val string, required bool) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		if required {
			return time.Time{}, &MalformedRowError{Source: source, Key: key, Field: field, Reason: "missing required timestamp"}
		}
		return time.Time{}, nil
	}
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &MalformedRowError{Source: source, Key: key, Field: field, Reason: "unparsable timestamp " + strconv.Quote(val)}
}

func parseMoney(source, key, field, val string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, &MalformedRowError{Source: source, Key: key, Field: field, Reason: "unparsable amount"}
	}
	if f < 0 {
		return 0, &MalformedRowError{Source: source, Key: key, Field: field, Reason: "negative amount"}
	}
	return f, nil
}

func parseUint(source, key, field, val string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(val), 10, 32)
	if err != nil {
		return 0, &MalformedRowError{Source: source, Key: key, Field: field, Reason: "unparsable integer"}
	}
	return n, nil
}

func requireID(source, key, field, val string) (string, error) {
	val = strings.TrimSpace(val)
	if val == "" || strings.EqualFold(val, "null") {
		return "", &MalformedRowError{Source: source, Key: key, Field: field, Reason: "missing required field"}
	}
	return val, nil
}

// normalizeOrderStatus folds the source vocabulary to lower case and maps
// anything outside it to "unknown" rather than dropping the row.
func normalizeOrderStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case models.OrderStatusDelivered:
		return models.OrderStatusDelivered
	case models.OrderStatusShipped:
		return models.OrderStatusShipped
	case models.OrderStatusCancelled:
		return models.OrderStatusCancelled
	case models.OrderStatusCreated:
		return models.OrderStatusCreated
	case models.OrderStatusApproved:
		return models.OrderStatusApproved
	case models.OrderStatusInvoiced:
		return models.OrderStatusInvoiced
	default:
		return models.OrderStatusUnknown
	}
}

func NormalizeCustomer(raw *models.RawCustomer) (*models.StagedCustomer, error) {
	id, err := requireID("customers", raw.CustomerID, "customer_id", raw.CustomerID)
	if err != nil {
		return nil, err
	}
	return &models.StagedCustomer{
		CustomerID: id,
		Zip:        strings.TrimSpace(raw.Zip),
		City:       strings.TrimSpace(raw.City),
		State:      strings.TrimSpace(raw.State),
		IngestedAt: raw.IngestedAt,
	}, nil
}

func NormalizeOrder(raw *models.RawOrder) (*models.StagedOrder, error) {
	id, err := requireID("orders", raw.OrderID, "order_id", raw.OrderID)
	if err != nil {
		return nil, err
	}
	customerID, err := requireID("orders", id, "customer_id", raw.CustomerID)
	if err != nil {
		return nil, err
	}
	purchase, err := parseTs("orders", id, "purchase_ts", raw.PurchaseTs, true)
	if err != nil {
		return nil, err
	}
	delivered, err := parseTs("orders", id, "delivered_ts", raw.DeliveredTs, false)
	if err != nil {
		return nil, err
	}
	estimated, err := parseTs("orders", id, "estimated_delivery_ts", raw.EstimatedDeliveryTs, false)
	if err != nil {
		return nil, err
	}
	// Delivery before purchase is a data defect in the source, not a reason
	// to lose the order; the delivered timestamp is discarded instead.
	if !delivered.IsZero() && delivered.Before(purchase) {
		delivered = time.Time{}
	}
	return &models.StagedOrder{
		OrderID:             id,
		CustomerID:          customerID,
		Status:              normalizeOrderStatus(raw.Status),
		PurchaseTs:          purchase,
		DeliveredTs:         delivered,
		EstimatedDeliveryTs: estimated,
		IngestedAt:          raw.IngestedAt,
	}, nil
}

func NormalizeOrderItem(raw *models.RawOrderItem) (*models.StagedOrderItem, error) {
	orderID, err := requireID("order_items", raw.OrderID, "order_id", raw.OrderID)
	if err != nil {
		return nil, err
	}
	productID, err := requireID("order_items", orderID, "product_id", raw.ProductID)
	if err != nil {
		return nil, err
	}
	itemID, err := parseUint("order_items", orderID, "item_id", raw.ItemID)
	if err != nil {
		return nil, err
	}
	price, err := parseMoney("order_items", orderID, "price", raw.Price)
	if err != nil {
		return nil, err
	}
	freight, err := parseMoney("order_items", orderID, "freight_value", raw.FreightValue)
	if err != nil {
		return nil, err
	}
	return &models.StagedOrderItem{
		OrderID:      orderID,
		ItemID:       uint32(itemID),
		ProductID:    productID,
		SellerID:     strings.TrimSpace(raw.SellerID),
		Price:        price,
		FreightValue: freight,
		IngestedAt:   raw.IngestedAt,
	}, nil
}

func NormalizePayment(raw *models.RawPayment) (*models.StagedPayment, error) {
	orderID, err := requireID("payments", raw.OrderID, "order_id", raw.OrderID)
	if err != nil {
		return nil, err
	}
	value, err := parseMoney("payments", orderID, "value", raw.Value)
	if err != nil {
		return nil, err
	}
	installments := uint64(1)
	if strings.TrimSpace(raw.Installments) != "" {
		installments, err = parseUint("payments", orderID, "installments", raw.Installments)
		if err != nil {
			return nil, err
		}
		if installments == 0 {
			installments = 1
		}
	}
	paymentType := strings.TrimSpace(raw.PaymentType)
	if paymentType == "" {
		return nil, &MalformedRowError{Source: "payments", Key: orderID, Field: "payment_type", Reason: "missing required field"}
	}
	return &models.StagedPayment{
		OrderID:      orderID,
		PaymentType:  paymentType,
		Value:        value,
		Installments: uint32(installments),
		IngestedAt:   raw.IngestedAt,
	}, nil
}

func NormalizeProduct(raw *models.RawProduct) (*models.StagedProduct, error) {
	id, err := requireID("products", raw.ProductID, "product_id", raw.ProductID)
	if err != nil {
		return nil, err
	}
	weight := 0.0
	if strings.TrimSpace(raw.WeightG) != "" {
		weight, err = parseMoney("products", id, "weight", raw.WeightG)
		if err != nil {
			return nil, err
		}
	}
	category := strings.TrimSpace(raw.Category)
	if category == "" {
		category = "uncategorized"
	}
	return &models.StagedProduct{
		ProductID:   id,
		Category:    category,
		Subcategory: strings.TrimSpace(raw.Subcategory),
		WeightG:     weight,
		Dimensions:  strings.TrimSpace(raw.Dimensions),
		IngestedAt:  raw.IngestedAt,
	}, nil
}

func NormalizeClickEvent(raw *models.RawClickEvent) (*models.StagedClickEvent, error) {
	id, err := requireID("clickstream", raw.EventID, "event_id", raw.EventID)
	if err != nil {
		return nil, err
	}
	customerID, err := requireID("clickstream", id, "customer_id", raw.CustomerID)
	if err != nil {
		return nil, err
	}
	ts, err := parseTs("clickstream", id, "ts", raw.Ts, true)
	if err != nil {
		return nil, err
	}
	return &models.StagedClickEvent{
		EventID:    id,
		CustomerID: customerID,
		Ts:         ts,
		EventType:  strings.ToLower(strings.TrimSpace(raw.EventType)),
		Device:     strings.ToLower(strings.TrimSpace(raw.Device)),
		SessionID:  strings.TrimSpace(raw.SessionID),
		IngestedAt: raw.IngestedAt,
	}, nil
}

func NormalizeAppEvent(raw *models.RawAppEvent) (*models.StagedAppEvent, error) {
	id, err := requireID("app_usage", raw.EventID, "event_id", raw.EventID)
	if err != nil {
		return nil, err
	}
	customerID, err := requireID("app_usage", id, "customer_id", raw.CustomerID)
	if err != nil {
		return nil, err
	}
	ts, err := parseTs("app_usage", id, "ts", raw.Ts, true)
	if err != nil {
		return nil, err
	}
	duration := 0.0
	if strings.TrimSpace(raw.DurationS) != "" {
		duration, err = parseMoney("app_usage", id, "duration_s", raw.DurationS)
		if err != nil {
			return nil, err
		}
	}
	return &models.StagedAppEvent{
		EventID:    id,
		CustomerID: customerID,
		Ts:         ts,
		Screen:     strings.TrimSpace(raw.Screen),
		Action:     strings.ToLower(strings.TrimSpace(raw.Action)),
		OS:         strings.ToLower(strings.TrimSpace(raw.OS)),
		DurationS:  duration,
		IngestedAt: raw.IngestedAt,
	}, nil
}

func NormalizeSupportTicket(raw *models.RawSupportTicket) (*models.StagedSupportTicket, error) {
	id, err := requireID("support_tickets", raw.TicketID, "ticket_id", raw.TicketID)
	if err != nil {
		return nil, err
	}
	customerID, err := requireID("support_tickets", id, "customer_id", raw.CustomerID)
	if err != nil {
		return nil, err
	}
	created, err := parseTs("support_tickets", id, "created_at", raw.CreatedAt, true)
	if err != nil {
		return nil, err
	}
	resolved, err := parseTs("support_tickets", id, "resolved_at", raw.ResolvedAt, false)
	if err != nil {
		return nil, err
	}
	if !resolved.IsZero() && resolved.Before(created) {
		return nil, &MalformedRowError{Source: "support_tickets", Key: id, Field: "resolved_at", Reason: "resolved before created"}
	}
	rating := 0.0
	if strings.TrimSpace(raw.SatisfactionRating) != "" {
		rating, err = parseMoney("support_tickets", id, "satisfaction_rating", raw.SatisfactionRating)
		if err != nil {
			return nil, err
		}
		if rating < 1 || rating > 5 {
			return nil, &MalformedRowError{Source: "support_tickets", Key: id, Field: "satisfaction_rating", Reason: "rating outside [1,5]"}
		}
	}
	return &models.StagedSupportTicket{
		TicketID:           id,
		CustomerID:         customerID,
		CreatedAt:          created,
		ResolvedAt:         resolved,
		Category:           strings.ToLower(strings.TrimSpace(raw.Category)),
		Priority:           strings.ToLower(strings.TrimSpace(raw.Priority)),
		SatisfactionRating: rating,
		IngestedAt:         raw.IngestedAt,
	}, nil
}

func NormalizeReview(raw *models.RawReview) (*models.StagedReview, error) {
	id, err := requireID("reviews", raw.ReviewID, "review_id", raw.ReviewID)
	if err != nil {
		return nil, err
	}
	orderID, err := requireID("reviews", id, "order_id", raw.OrderID)
	if err != nil {
		return nil, err
	}
	score, err := parseUint("reviews", id, "score", raw.Score)
	if err != nil {
		return nil, err
	}
	if score < 1 || score > 5 {
		return nil, &MalformedRowError{Source: "reviews", Key: id, Field: "score", Reason: "score outside [1,5]"}
	}
	return &models.StagedReview{
		ReviewID:   id,
		OrderID:    orderID,
		Score:      uint8(score),
		IngestedAt: raw.IngestedAt,
	}, nil
}

func NormalizeRefund(raw *models.RawRefund) (*models.StagedRefund, error) {
	id, err := requireID("refunds", raw.RefundID, "refund_id", raw.RefundID)
	if err != nil {
		return nil, err
	}
	orderID, err := requireID("refunds", id, "order_id", raw.OrderID)
	if err != nil {
		return nil, err
	}
	amount, err := parseMoney("refunds", id, "amount", raw.Amount)
	if err != nil {
		return nil, err
	}
	return &models.StagedRefund{
		RefundID:   id,
		OrderID:    orderID,
		Amount:     amount,
		Reason:     strings.ToLower(strings.TrimSpace(raw.Reason)),
		IngestedAt: raw.IngestedAt,
	}, nil
}
