package validator

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sokinpui/mend.go/internal/llm"
	"github.com/sokinpui/mend.go/internal/parser"
	"github.com/sokinpui/mend.go/internal/ui"
	"github.com/sokinpui/mend.go/model"
)

// Unlimited disables the retry budget.
const Unlimited = -1

// CorrectionPrompt is appended after every reply that could not be parsed.
const CorrectionPrompt = "Your response could not be parsed as JSON. Please restate your last message as pure JSON."

// ErrExhaustedRetries is returned when the retry budget runs out before the
// model produced a parseable array.
var ErrExhaustedRetries = errors.New("no valid JSON response found after retries")

// Exchange wraps a single blocking model round trip, e.g. to show a spinner.
type Exchange func(label string, fn func() (string, error)) (string, error)

// Validator asks the model for an edit batch until the reply parses.
type Validator struct {
	client   llm.Client
	exchange Exchange
	// OnMalformed, if set, is called with every reply that failed to parse.
	OnMalformed func(reply string, err error)
}

// New creates a Validator around a model client.
func New(client llm.Client) *Validator {
	return &Validator{client: client}
}

// SetExchange installs a wrapper around each model round trip.
func (v *Validator) SetExchange(exchange Exchange) {
	v.exchange = exchange
}

// Validate sends conv to the model and returns the first reply that parses
// as a JSON array. Every reply is appended to conv as an assistant turn and
// every failure adds a correction turn, so retries see the whole exchange.
//
// retries bounds the number of model exchanges: Unlimited never gives up,
// 0 makes no attempt at all.
func (v *Validator) Validate(ctx context.Context, modelName string, conv *model.Conversation, retries int) (model.Batch, error) {
	remaining := retries
	for attempt := 1; ; attempt++ {
		if remaining == 0 {
			return nil, ErrExhaustedRetries
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reply, err := v.send(ctx, modelName, conv, attempt)
		if err != nil {
			if errors.Is(err, llm.ErrTransport) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", llm.ErrTransport, err)
		}
		conv.Append(model.RoleAssistant, reply)

		batch, err := parser.ExtractBatch(reply)
		if err == nil {
			log.Debugf("model reply parsed on attempt %d: %d object(s)", attempt, len(batch))
			return batch, nil
		}

		ui.Error("%v. Re-running the query.", err)
		ui.Warning("\nModel response:\n\n%s\n", reply)
		if v.OnMalformed != nil {
			v.OnMalformed(reply, err)
		}

		conv.Append(model.RoleUser, CorrectionPrompt)
		if remaining > 0 {
			remaining--
		}
	}
}

// send performs one round trip. The call's context is cancelled on return,
// so a wrapper that gives up early (ctrl+c on the spinner) also stops the
// request still in flight.
func (v *Validator) send(ctx context.Context, modelName string, conv *model.Conversation, attempt int) (string, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	call := func() (string, error) {
		return v.client.Chat(callCtx, modelName, conv.Messages)
	}
	if v.exchange == nil {
		return call()
	}
	label := fmt.Sprintf("Asking %s for a fix", modelName)
	if attempt > 1 {
		label = fmt.Sprintf("Asking %s to restate its answer (attempt %d)", modelName, attempt)
	}
	return v.exchange(label, call)
}
