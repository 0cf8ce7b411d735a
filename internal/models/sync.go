package models

// Status is the diagnostic code attached to an item during a sync run.
type Status string

const (
	StatusNoLink         Status = "no_link"
	StatusFromListing    Status = "from_listing"
	StatusFromAPI        Status = "from_api"
	StatusFromPage       Status = "from_page"
	StatusFetchFailed    Status = "fetch_failed"
	StatusFetchError     Status = "fetch_error"
	StatusFetchOKNoPrice Status = "fetch_ok_no_price"
	StatusUpdated        Status = "updated"
	StatusUpdateFailed   Status = "update_failed"
)

// Strategy names the matching technique that produced a match.
type Strategy string

const (
	StrategyNone           Strategy = ""
	StrategyListingURL     Strategy = "listing_url"
	StrategyListingArticle Strategy = "listing_article"
	StrategyAPI            Strategy = "api"
	StrategyPage           Strategy = "page"
)

// Match is the remote data linked to an inventory item.
// Available is nil when the strategy did not report availability.
type Match struct {
	URL       string
	Price     *float64
	Available *bool
}

// MatchResult is produced once per item per run.
type MatchResult struct {
	Item     InventoryItem
	Match    *Match
	Strategy Strategy
	Status   Status
}

// Matched reports whether any strategy linked the item.
func (r MatchResult) Matched() bool {
	return r.Match != nil
}

// ItemDiagnostic is one entry of the diagnostics trail.
type ItemDiagnostic struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status Status `json:"status"`
}

// UpdateSummary describes one write-back attempt.
type UpdateSummary struct {
	Name    string   `json:"name"`
	Article string   `json:"article,omitempty"`
	Price   *float64 `json:"price"`
	Error   string   `json:"error,omitempty"`
}

// Diagnostics is the per-run diagnostics block returned to the caller.
type Diagnostics struct {
	ItemsWithRemoteLink int              `json:"items_with_remote_link"`
	Details             []ItemDiagnostic `json:"details"`
	Message             *string          `json:"message"`
}

// SyncResult is the outcome of one batch sync.
type SyncResult struct {
	OK            bool            `json:"ok"`
	RunID         string          `json:"run_id"`
	ProductsCount int             `json:"products_count"`
	Updated       int             `json:"updated"`
	Updates       []UpdateSummary `json:"updates"`
	Diagnostics   Diagnostics     `json:"diagnostics"`
	Error         string          `json:"error,omitempty"`

	// Trail holds every inventory item in order, including items without a
	// remote link, which Diagnostics leaves out.
	Trail []ItemDiagnostic `json:"-"`
}
