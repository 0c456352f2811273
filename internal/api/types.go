package api

import "github.com/lyftr/webhookd/internal/message"

// ListResponse is the JSON body of GET /messages.
type ListResponse struct {
	Data   []message.Message `json:"data"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// StatsResponse is the JSON body of GET /stats.
type StatsResponse struct {
	TotalMessages     int                   `json:"total_messages"`
	SendersCount      int                   `json:"senders_count"`
	MessagesPerSender []message.SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string               `json:"first_message_ts"`
	LastMessageTS     *string               `json:"last_message_ts"`
}

// HealthResponse is the JSON body of the health probes.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the generic JSON error body of the read paths.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
