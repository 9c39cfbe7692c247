package validator

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/mend.go/internal/llm"
	"github.com/sokinpui/mend.go/internal/ui"
	"github.com/sokinpui/mend.go/model"
)

// scriptedClient replays replies in order, repeating the last one.
type scriptedClient struct {
	replies []string
	err     error
	calls   int
	seen    [][]model.Message
}

func (c *scriptedClient) Chat(_ context.Context, _ string, messages []model.Message) (string, error) {
	c.calls++
	c.seen = append(c.seen, append([]model.Message(nil), messages...))
	if c.err != nil {
		return "", c.err
	}
	i := c.calls - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

func quietUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := ui.Out
	ui.Out = &buf
	t.Cleanup(func() { ui.Out = old })
	return &buf
}

func TestValidateReturnsFirstParseableReply(t *testing.T) {
	quietUI(t)
	client := &scriptedClient{replies: []string{"Sure! Here you go:\n[{\"explanation\":\"fix\"}]"}}
	conv := model.NewConversation("system", "fix it")

	batch, err := New(client).Validate(context.Background(), "m", conv, Unlimited)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.JSONEq(t, `{"explanation":"fix"}`, string(batch[0]))

	assert.Equal(t, 1, client.calls)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, model.RoleAssistant, conv.Last().Role)
}

func TestValidateRetriesConversationally(t *testing.T) {
	out := quietUI(t)
	client := &scriptedClient{replies: []string{
		"I would change the import.",
		"```json\n[{\"operation\":\"Delete\",\"line\":1}]\n```",
	}}
	conv := model.NewConversation("system", "fix it")

	var malformed []string
	v := New(client)
	v.OnMalformed = func(reply string, err error) { malformed = append(malformed, reply) }

	batch, err := v.Validate(context.Background(), "m", conv, 3)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, []string{"I would change the import."}, malformed)
	assert.Contains(t, out.String(), "I would change the import.", "raw reply is shown to the operator")

	// The retry carries the malformed reply and the correction request.
	second := client.seen[1]
	require.Len(t, second, 4)
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "I would change the import."}, second[2])
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: CorrectionPrompt}, second[3])
}

func TestValidateExhaustsBudget(t *testing.T) {
	for _, budget := range []int{1, 2, 5} {
		quietUI(t)
		client := &scriptedClient{replies: []string{"no json here"}}
		conv := model.NewConversation("system", "fix it")

		_, err := New(client).Validate(context.Background(), "m", conv, budget)
		assert.ErrorIs(t, err, ErrExhaustedRetries)
		assert.Equal(t, budget, client.calls, "budget %d", budget)
		assert.LessOrEqual(t, client.calls, budget+1)
	}
}

func TestValidateZeroBudgetMakesNoAttempt(t *testing.T) {
	client := &scriptedClient{replies: []string{"[]"}}
	_, err := New(client).Validate(context.Background(), "m", model.NewConversation("s", "u"), 0)
	assert.ErrorIs(t, err, ErrExhaustedRetries)
	assert.Zero(t, client.calls)
}

func TestValidateUnlimitedKeepsGoing(t *testing.T) {
	quietUI(t)
	replies := make([]string, 25)
	for i := range replies {
		replies[i] = "still thinking"
	}
	replies = append(replies, "[]")
	client := &scriptedClient{replies: replies}

	batch, err := New(client).Validate(context.Background(), "m", model.NewConversation("s", "u"), Unlimited)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 26, client.calls)
}

func TestValidateTransportFailureIsNotRetried(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	conv := model.NewConversation("s", "u")

	_, err := New(client).Validate(context.Background(), "m", conv, Unlimited)
	assert.ErrorIs(t, err, llm.ErrTransport)
	assert.Equal(t, 1, client.calls)
	assert.Len(t, conv.Messages, 2)
}

func TestValidateUsesExchangeWrapper(t *testing.T) {
	client := &scriptedClient{replies: []string{"[]"}}
	var labels []string
	v := New(client)
	v.SetExchange(func(label string, fn func() (string, error)) (string, error) {
		labels = append(labels, label)
		return fn()
	})

	_, err := v.Validate(context.Background(), "llama3.2", model.NewConversation("s", "u"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asking llama3.2 for a fix"}, labels)
}

func TestValidateStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptedClient{replies: []string{"[]"}}

	_, err := New(client).Validate(ctx, "m", model.NewConversation("s", "u"), Unlimited)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.calls)
}

// blockingClient waits until its context is cancelled.
type blockingClient struct {
	done chan error
}

func (c *blockingClient) Chat(ctx context.Context, _ string, _ []model.Message) (string, error) {
	<-ctx.Done()
	c.done <- ctx.Err()
	return "", ctx.Err()
}

func TestValidateCancelsAbandonedExchange(t *testing.T) {
	client := &blockingClient{done: make(chan error, 1)}
	v := New(client)
	// Mimics ctrl+c on the spinner: the wrapper returns while the request
	// is still running.
	v.SetExchange(func(label string, fn func() (string, error)) (string, error) {
		go fn()
		return "", context.Canceled
	})

	_, err := v.Validate(context.Background(), "m", model.NewConversation("s", "u"), Unlimited)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case err := <-client.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("model request kept running after the exchange was abandoned")
	}
}
