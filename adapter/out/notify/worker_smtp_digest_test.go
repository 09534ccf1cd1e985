package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"
)

type mockDialer struct {
	sent []*gomail.Message
	err  error
}

func (m *mockDialer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.err
}

func TestNewSMTPDigestSender_RequiresAddresses(t *testing.T) {
	_, err := NewSMTPDigestSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)
}

func TestSMTPDigestSender_SendDigest(t *testing.T) {
	s, err := NewSMTPDigestSender(SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "trips@example.com",
		To:   []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)

	d := &mockDialer{}
	s.dialer = d

	require.NoError(t, s.SendDigest(context.Background(), "Upcoming travel for u1", "Flights\n  - AA456 <LAX>"))
	require.Len(t, d.sent, 1)

	msg := d.sent[0]
	assert.Equal(t, []string{"Upcoming travel for u1"}, msg.GetHeader("Subject"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, msg.GetHeader("To"))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
	assert.Contains(t, buf.String(), "&lt;LAX&gt;")
}

func TestSMTPDigestSender_Errors(t *testing.T) {
	s, err := NewSMTPDigestSender(SMTPConfig{Host: "h", From: "f@example.com", To: []string{"t@example.com"}})
	require.NoError(t, err)
	s.dialer = &mockDialer{err: errors.New("refused")}

	assert.Error(t, s.SendDigest(context.Background(), "s", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SendDigest(ctx, "s", "b"), context.Canceled)
}
