package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatsRequest selects the reporting window
type StatsRequest struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// StatsResponse is the admin dashboard
type StatsResponse struct {
	WindowDays     int                        `json:"window_days"`
	Since          time.Time                  `json:"since"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	TotalOrders    int64                      `json:"total_orders"`
	OrdersInWindow int64                      `json:"orders_in_window"`
	OrdersByStatus map[string]int64           `json:"orders_by_status"`
	Revenue        RevenueResponse            `json:"revenue"`
	TopMaterials   []MaterialUsageResponse    `json:"top_materials"`
	TopProducers   []ProducerStandingResponse `json:"top_producers"`
}

// RevenueResponse sums orders paid inside the window. Payouts is what is owed
// to producers for those orders after refunds.
type RevenueResponse struct {
	Gross      decimal.Decimal `json:"gross"`
	Refunds    decimal.Decimal `json:"refunds"`
	Net        decimal.Decimal `json:"net"`
	Commission decimal.Decimal `json:"commission"`
	Payouts    decimal.Decimal `json:"payouts"`
}

type MaterialUsageResponse struct {
	Name   string `json:"name"`
	Orders int64  `json:"orders"`
}

type ProducerStandingResponse struct {
	ProducerID    uuid.UUID `json:"producer_id"`
	Orders        int64     `json:"orders"`
	Confirmed     int64     `json:"confirmed"`
	AverageRating float64   `json:"average_rating"`
	Ratings       int64     `json:"ratings"`
}
