package dto

type AIQueryRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type AIQueryResponse struct {
	Answer string       `json:"answer"`
	Debug  *AIDebugInfo `json:"debug,omitempty"`
}

type AIDebugInfo struct {
	Hops      int           `json:"hops"`
	Exhausted bool          `json:"exhausted,omitempty"`
	Tools     []AIToolTrace `json:"tools"`
}

type AIToolTrace struct {
	Tool  string         `json:"tool"`
	Args  map[string]any `json:"args"`
	Error string         `json:"error,omitempty"`
}

// Tool arguments as produced by the model. Dates are YYYY-MM-DD strings and
// are parsed by the assistant so a bad value becomes a tool error the model
// can correct, not a request failure.

type AddTransactionArgs struct {
	Type              string  `json:"type"`
	Amount            float64 `json:"amount"`
	Date              string  `json:"date"`
	Category          string  `json:"category"`
	Status            string  `json:"status"`
	Description       string  `json:"description"`
	Recurrence        string  `json:"recurrence"`
	RecurrenceEndDate string  `json:"recurrenceEndDate"`
	IncludeInBalance  *bool   `json:"includeInBalance"`
}

type GetTransactionsArgs struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	AddedBy   string `json:"addedBy"`
	Limit     int    `json:"limit"`
}

type GetBalanceArgs struct {
	Date string `json:"date"`
}

type GetSummaryArgs struct {
	Month string `json:"month"`
}
