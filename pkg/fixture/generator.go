// Package fixture generates deterministic synthetic raw datasets for tests
// and local runs. It stands in for the ingestion collaborator.
package fixture

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/memory"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// TsLayout is the wall-clock format the loader emits for business timestamps.
const TsLayout = "2006-01-02 15:04:05"

var (
	states     = []string{"SP", "RJ", "MG", "RS", "BA"}
	categories = []string{"electronics", "furniture", "toys", "beauty", "sports"}
	devices    = []string{"mobile", "desktop", "tablet"}
	eventTypes = []string{"page_view", "add_to_cart", "search", "checkout"}
	screens    = []string{"home", "product", "cart", "orders"}
	priorities = []string{"low", "medium", "high"}
)

// Options controls the generated dataset. Same options, same dataset.
type Options struct {
	Seed      int64
	Customers int
	Products  int
	// Start anchors business event time; IngestedAt stamps every row.
	Start      time.Time
	IngestedAt time.Time
}

// Generate builds a deterministic synthetic raw dataset. Every order gets at
// least one item and one payment so the staged graph is internally
// consistent; reviews and refunds are sprinkled on a subset of orders.
func Generate(opts Options) *memory.SourceStore {
	rng := rand.New(rand.NewSource(opts.Seed))
	s := memory.NewSourceStore()

	if opts.Products <= 0 {
		opts.Products = 20
	}
	productIDs := make([]string, opts.Products)
	for i := range productIDs {
		productIDs[i] = fmt.Sprintf("prod-%03d", i+1)
		s.AddProducts(&models.RawProduct{
			ProductID:   productIDs[i],
			Category:    categories[i%len(categories)],
			Subcategory: "general",
			WeightG:     strconv.Itoa(100 + rng.Intn(5000)),
			Dimensions:  "30x20x10",
			IngestedAt:  opts.IngestedAt,
		})
	}

	orderSeq := 0
	for i := 0; i < opts.Customers; i++ {
		customerID := fmt.Sprintf("cust-%04d", i+1)
		s.AddCustomers(&models.RawCustomer{
			CustomerID: customerID,
			Zip:        fmt.Sprintf("%05d", 10000+rng.Intn(80000)),
			City:       "city-" + strconv.Itoa(rng.Intn(50)),
			State:      states[rng.Intn(len(states))],
			IngestedAt: opts.IngestedAt,
		})

		orderCount := rng.Intn(6)
		for j := 0; j < orderCount; j++ {
			orderSeq++
			orderID := fmt.Sprintf("order-%05d", orderSeq)
			purchased := opts.Start.Add(time.Duration(rng.Intn(360*24)) * time.Hour)
			delivered := purchased.Add(time.Duration(2+rng.Intn(12)) * 24 * time.Hour)
			s.AddOrders(&models.RawOrder{
				OrderID:             orderID,
				CustomerID:          customerID,
				Status:              "delivered",
				PurchaseTs:          purchased.Format(TsLayout),
				DeliveredTs:         delivered.Format(TsLayout),
				EstimatedDeliveryTs: purchased.Add(10 * 24 * time.Hour).Format(TsLayout),
				IngestedAt:          opts.IngestedAt,
			})

			itemCount := 1 + rng.Intn(3)
			total := 0.0
			for k := 0; k < itemCount; k++ {
				price := 10 + rng.Float64()*290
				total += price
				s.AddOrderItems(&models.RawOrderItem{
					OrderID:      orderID,
					ItemID:       strconv.Itoa(k + 1),
					ProductID:    productIDs[rng.Intn(len(productIDs))],
					SellerID:     fmt.Sprintf("seller-%02d", rng.Intn(10)+1),
					Price:        fmt.Sprintf("%.2f", price),
					FreightValue: fmt.Sprintf("%.2f", 5+rng.Float64()*20),
					IngestedAt:   opts.IngestedAt,
				})
			}
			s.AddPayments(&models.RawPayment{
				OrderID:      orderID,
				PaymentType:  "credit_card",
				Value:        fmt.Sprintf("%.2f", total),
				Installments: strconv.Itoa(1 + rng.Intn(4)),
				IngestedAt:   opts.IngestedAt,
			})

			if rng.Intn(10) < 6 {
				s.AddReviews(&models.RawReview{
					ReviewID:   "review-" + orderID,
					OrderID:    orderID,
					Score:      strconv.Itoa(1 + rng.Intn(5)),
					IngestedAt: opts.IngestedAt,
				})
			}
			if rng.Intn(10) == 0 {
				s.AddRefunds(&models.RawRefund{
					RefundID:   "refund-" + orderID,
					OrderID:    orderID,
					Amount:     fmt.Sprintf("%.2f", total/2),
					Reason:     "damaged",
					IngestedAt: opts.IngestedAt,
				})
			}
		}

		clickCount := rng.Intn(20)
		for j := 0; j < clickCount; j++ {
			ts := opts.Start.Add(time.Duration(rng.Intn(360*24)) * time.Hour)
			s.AddClickEvents(&models.RawClickEvent{
				EventID:    fmt.Sprintf("click-%s-%d", customerID, j),
				CustomerID: customerID,
				Ts:         ts.Format(TsLayout),
				EventType:  eventTypes[rng.Intn(len(eventTypes))],
				Device:     devices[rng.Intn(len(devices))],
				SessionID:  fmt.Sprintf("sess-%s-%d", customerID, j/4),
				IngestedAt: opts.IngestedAt,
			})
		}
		appCount := rng.Intn(10)
		for j := 0; j < appCount; j++ {
			ts := opts.Start.Add(time.Duration(rng.Intn(360*24)) * time.Hour)
			s.AddAppEvents(&models.RawAppEvent{
				EventID:    fmt.Sprintf("app-%s-%d", customerID, j),
				CustomerID: customerID,
				Ts:         ts.Format(TsLayout),
				Screen:     screens[rng.Intn(len(screens))],
				Action:     "tap",
				OS:         "android",
				DurationS:  strconv.Itoa(5 + rng.Intn(300)),
				IngestedAt: opts.IngestedAt,
			})
		}
		if rng.Intn(4) == 0 {
			created := opts.Start.Add(time.Duration(rng.Intn(360*24)) * time.Hour)
			s.AddSupportTickets(&models.RawSupportTicket{
				TicketID:           "ticket-" + customerID,
				CustomerID:         customerID,
				CreatedAt:          created.Format(TsLayout),
				ResolvedAt:         created.Add(time.Duration(1+rng.Intn(72)) * time.Hour).Format(TsLayout),
				Category:           "delivery",
				Priority:           priorities[rng.Intn(len(priorities))],
				SatisfactionRating: strconv.Itoa(1 + rng.Intn(5)),
				IngestedAt:         opts.IngestedAt,
			})
		}
	}

	return s
}
