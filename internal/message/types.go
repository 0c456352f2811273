package message

// Message is the canonical persisted entity. Timestamps are kept in
// their canonical RFC3339 UTC ("Z") string form, which sorts
// chronologically as text for a fixed format.
type Message struct {
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	TS        string  `json:"ts"`
	Text      *string `json:"text"`

	// CreatedAt is assigned by the store at first insert and is not
	// part of the external list representation.
	CreatedAt string `json:"-"`
}

// InsertOutcome reports whether InsertIfAbsent stored a new row.
type InsertOutcome string

const (
	Inserted  InsertOutcome = "inserted"
	Duplicate InsertOutcome = "duplicate"
)

// Filter restricts List results. Zero-valued fields are ignored; set
// fields combine with AND.
type Filter struct {
	// FromExact matches the sender exactly.
	FromExact string
	// Since is an inclusive lower bound on ts, compared against the
	// canonical RFC3339 UTC form.
	Since string
	// TextContains is a case-insensitive substring match on text.
	TextContains string
}

// SenderCount is one entry of the per-sender leaderboard.
type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

// Stats aggregates the whole store. First/Last are nil when the store
// is empty.
type Stats struct {
	TotalMessages  int
	SendersCount   int
	PerSender      []SenderCount
	FirstMessageTS *string
	LastMessageTS  *string
}

// Pagination bounds for List.
const (
	DefaultLimit = 50
	MinLimit     = 1
	MaxLimit     = 100
)

// ClampLimit normalizes a requested page size: 0 means unspecified and
// takes the default, anything else is forced into [MinLimit, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < MinLimit:
		return MinLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// ClampOffset normalizes a requested offset to be non-negative.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
