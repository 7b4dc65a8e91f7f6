package query

import "github.com/bisqwatch/bisqwatch-backend/internal/market"

// ResolvedQuery is the market/side selection derived from free-text tokens.
// Markets keep the configured market-list order and carry no duplicates;
// Filters are ordered buys before sells.
type ResolvedQuery struct {
	Markets []market.Market
	Filters []market.Side
}

// MessageContent is the long-form body of a result item. The transport
// collaborator is expected to honor the parse mode and preview flag.
type MessageContent struct {
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// ResultItem is one entry of a query answer.
type ResultItem struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Message     MessageContent `json:"message"`
	ThumbURL    string         `json:"thumb_url,omitempty"`
}

const (
	// MaxResults caps the combined answer list of one query.
	MaxResults = 10
	// PageDepth caps how many ranked entries are walked per (market, side) pair.
	PageDepth = 10
	// maxResultIDLen is the transport's limit on result ids.
	maxResultIDLen = 64
)
