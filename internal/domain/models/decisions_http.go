package models

// Requests for the operator HTTP endpoints. Defined in domain for consistency
// and reuse.

type DecisionRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type PerformanceRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}

type TradeResultRequest struct {
	Symbol string  `json:"symbol" validate:"required"`
	PnL    float64 `json:"pnl"`
}
