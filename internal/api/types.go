package api

import "github.com/bisqwatch/bisqwatch-backend/internal/query"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type QueryResponse struct {
	Query   string             `json:"query"`
	Results []query.ResultItem `json:"results"`
}

type MarketDTO struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Bids  int    `json:"bids"`
	Asks  int    `json:"asks"`
	// Reference mid-price; omitted when the price feed has no value yet.
	ReferencePrice float64 `json:"reference_price,omitempty"`
}

type MarketsResponse struct {
	Markets   []MarketDTO `json:"markets"`
	FetchedAt int64       `json:"fetched_at"`
}

type EventRequest struct {
	UserID string `json:"user_id"`
}

type ChosenRequest struct {
	ResultID string `json:"result_id"`
	UserID   string `json:"user_id"`
	Query    string `json:"query"`
}
