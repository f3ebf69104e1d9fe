package stripe

// API object shapes, trimmed to the fields the adapter reads.

type paymentIntent struct {
	ID                 string            `json:"id"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	ClientSecret       string            `json:"client_secret"`
	Description        string            `json:"description"`
	CancellationReason string            `json:"cancellation_reason"`
	CanceledAt         int64             `json:"canceled_at"`
	Created            int64             `json:"created"`
	Metadata           map[string]string `json:"metadata"`
}

type refundObject struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentIntent string `json:"payment_intent"`
	Reason        string `json:"reason"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
}

type transferObject struct {
	ID                string            `json:"id"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Destination       string            `json:"destination"`
	SourceTransaction string            `json:"source_transaction"`
	Created           int64             `json:"created"`
	Metadata          map[string]string `json:"metadata"`
}

type reversalObject struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Transfer string `json:"transfer"`
	Created  int64  `json:"created"`
}

type payoutObject struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ArrivalDate int64  `json:"arrival_date"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	Type        string `json:"type"`
}

type accountRequirements struct {
	CurrentlyDue   []string `json:"currently_due"`
	EventuallyDue  []string `json:"eventually_due"`
	DisabledReason string   `json:"disabled_reason"`
}

type accountObject struct {
	ID             string               `json:"id"`
	Country        string               `json:"country"`
	Email          string               `json:"email"`
	ChargesEnabled bool                 `json:"charges_enabled"`
	PayoutsEnabled bool                 `json:"payouts_enabled"`
	Requirements   *accountRequirements `json:"requirements"`
}

type accountLink struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

type customerObject struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Phone    string            `json:"phone"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

type customerList struct {
	Data    []customerObject `json:"data"`
	HasMore bool             `json:"has_more"`
}

type paymentIntentList struct {
	Data    []paymentIntent `json:"data"`
	HasMore bool            `json:"has_more"`
}

type paymentMethodObject struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Customer string `json:"customer"`
	Created  int64  `json:"created"`
}

type balanceEntry struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type balanceObject struct {
	Available []balanceEntry `json:"available"`
	Pending   []balanceEntry `json:"pending"`
}

type balanceTransaction struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	Created     int64  `json:"created"`
	AvailableOn int64  `json:"available_on"`
	Description string `json:"description"`
}

type balanceTransactionList struct {
	Data    []balanceTransaction `json:"data"`
	HasMore bool                 `json:"has_more"`
}
