package webhook

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lyftr/webhookd/internal/message"
)

// MessageInserter is the single write entry point into persistence.
type MessageInserter interface {
	InsertIfAbsent(ctx context.Context, msg message.Message) (message.InsertOutcome, error)
}

// ResultCounter accumulates per-result webhook counters.
type ResultCounter interface {
	RecordWebhook(result string)
}

// Pipeline runs the write path for one webhook delivery:
// verify signature, validate payload, insert-or-skip, classify.
//
// The signature check runs first and unconditionally on the raw body,
// so a caller without the shared secret can never reach validation or
// the store.
type Pipeline struct {
	secret  string
	store   MessageInserter
	counter ResultCounter
	logger  *slog.Logger
}

func NewPipeline(secret string, store MessageInserter, counter ResultCounter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		secret:  secret,
		store:   store,
		counter: counter,
		logger:  logger,
	}
}

// Process handles one delivery and returns its terminal outcome. Every
// terminal outcome except a storage failure increments exactly one
// webhook result counter.
func (p *Pipeline) Process(ctx context.Context, body []byte, signatureHex string) Result {
	if !VerifySignature(p.secret, body, signatureHex) {
		p.counter.RecordWebhook(ResultInvalidSignature)
		return Result{
			Status: http.StatusUnauthorized,
			Result: ResultInvalidSignature,
			Body:   ErrorResponse{Detail: "invalid signature"},
		}
	}

	msg, verr := ParseMessage(body)
	if verr != nil {
		p.counter.RecordWebhook(ResultValidationError)
		res := Result{
			Status: http.StatusUnprocessableEntity,
			Result: ResultValidationError,
		}
		if verr.Kind == KindMalformedJSON {
			res.Body = ErrorResponse{Detail: "malformed JSON payload"}
		} else {
			res.Body = ValidationErrorResponse{Detail: verr.Fields}
		}
		return res
	}

	outcome, err := p.store.InsertIfAbsent(ctx, msg)
	if err != nil {
		p.logger.Error("message insert failed",
			"message_id", msg.MessageID,
			"error", err,
		)
		return Result{
			Status:    http.StatusInternalServerError,
			MessageID: msg.MessageID,
			Body:      ErrorResponse{Detail: "storage unavailable"},
		}
	}

	res := Result{
		Status:    http.StatusOK,
		Result:    ResultCreated,
		MessageID: msg.MessageID,
		Body:      StatusResponse{Status: "ok"},
	}
	if outcome == message.Duplicate {
		res.Result = ResultDuplicate
		res.Duplicate = true
	}
	p.counter.RecordWebhook(res.Result)
	return res
}
