package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roshankumar101/Portal-sub001/internal/types"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[msg.To]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

func TestDispatcher_RunOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ok, err := svc.QueueEmail(ctx, types.EmailRequest{To: "ok@example.com", Subject: "Hi", HTML: "<p>Hello <b>there</b></p>"})
	require.NoError(t, err)
	bad, err := svc.QueueEmail(ctx, types.EmailRequest{To: "bad@example.com", Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)

	sender := &fakeSender{fail: map[string]error{"bad@example.com": errors.New("mailbox unavailable")}}
	d := NewDispatcher(store, sender, 10, 2, zaptest.NewLogger(t))

	sent, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Hello there")
	assert.Contains(t, sender.sent[0].Text, "/unsubscribe?token=")

	got, err := svc.GetEmail(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EmailSent, got.Status)
	assert.Equal(t, "msg-ok@example.com", got.ProviderMessageID)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.SentAt)

	got, err = svc.GetEmail(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EmailPending, got.Status, "first failure stays pending")
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "mailbox unavailable", got.Error)

	sent, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	got, err = svc.GetEmail(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EmailFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)

	sent, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, sender.sent, 1, "sent and failed emails are not retried")
}

func TestPlainText(t *testing.T) {
	text, err := PlainText(`<html><head><style>p{}</style></head><body>
		<h2>Backend   Engineer</h2>
		<p>Line one<br>Line two</p>
		<p><a href="https://portal.example/unsubscribe?token=t&amp;email=a%40b.c">Unsubscribe</a></p>
	</body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer\nLine one\nLine two\nUnsubscribe [https://portal.example/unsubscribe?token=t&email=a%40b.c]", text)
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESSender(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSenderWithClient(client, "placements@portal.example")

	id, err := sender.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", HTML: "<p>x</p>", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	require.NotNil(t, client.input)
	assert.Equal(t, "placements@portal.example", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"a@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Hi", aws.ToString(client.input.Message.Subject.Data))
	assert.Equal(t, "<p>x</p>", aws.ToString(client.input.Message.Body.Html.Data))
	assert.Equal(t, "x", aws.ToString(client.input.Message.Body.Text.Data))

	client.err = errors.New("throttled")
	_, err = sender.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorContains(t, err, "throttled")
}

func TestLogSender(t *testing.T) {
	id, err := NewLogSender(zaptest.NewLogger(t)).Send(context.Background(), Message{To: "a@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
