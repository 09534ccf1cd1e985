// Package maildir reads messages from a local Maildir. It serves offline
// scans and fixtures with the same contract as the Gmail source.
package maildir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emersion/go-maildir"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"travel_server/core/port/out"
	"travel_server/pkg/logger"
	"travel_server/pkg/mailtext"
)

// Source implements out.MailSource over one Maildir. Messages in cur/ and
// new/ are read; new/ is never moved to cur/ so the mailbox stays untouched.
type Source struct {
	dir maildir.Dir
}

var _ out.MailSource = (*Source)(nil)

func NewSource(root string) *Source {
	return &Source{dir: maildir.Dir(root)}
}

// FetchMessages returns messages dated on or after q.After, newest first.
// Messages without a parseable Date header are kept and ordered last.
func (s *Source) FetchMessages(ctx context.Context, q out.MailQuery) ([]out.MailMessage, error) {
	var messages []out.MailMessage

	keep := func(key string, open func() (io.ReadCloser, error)) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := readMessage(key, open)
		if err != nil {
			logger.WithField("key", key).WithError(err).Warn("skipping unreadable message")
			return nil
		}
		if !msg.ReceivedAt.IsZero() && msg.ReceivedAt.Before(q.After) {
			return nil
		}
		if msg.Body == "" {
			return nil
		}
		messages = append(messages, *msg)
		return nil
	}

	err := s.dir.Walk(func(m *maildir.Message) error {
		return keep(m.Key(), m.Open)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read maildir %s: %w", s.dir, err)
	}
	if err := s.walkNew(keep); err != nil {
		return nil, fmt.Errorf("failed to read maildir %s: %w", s.dir, err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i].ReceivedAt, messages[j].ReceivedAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})

	if q.MaxResults > 0 && len(messages) > q.MaxResults {
		messages = messages[:q.MaxResults]
	}
	return messages, nil
}

// walkNew visits unseen deliveries in place. maildir.Dir.Unseen would move
// them to cur/, which a read-only scan must not do.
func (s *Source) walkNew(fn func(key string, open func() (io.ReadCloser, error)) error) error {
	newDir := filepath.Join(string(s.dir), "new")
	entries, err := os.ReadDir(newDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(newDir, e.Name())
		if err := fn(e.Name(), func() (io.ReadCloser, error) { return os.Open(path) }); err != nil {
			return err
		}
	}
	return nil
}

func readMessage(key string, open func() (io.ReadCloser, error)) (*out.MailMessage, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	mr, err := mail.CreateReader(rc)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}
	defer mr.Close()

	subject, err := mr.Header.Subject()
	if err != nil {
		subject = mr.Header.Get("Subject")
	}
	if subject == "" {
		subject = "No Subject"
	}

	msg := &out.MailMessage{
		ID:      key,
		From:    mr.Header.Get("From"),
		Subject: subject,
	}
	if id, err := mr.Header.MessageID(); err == nil && id != "" {
		msg.ID = id
	}
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date.UTC()
	}

	htmlBody, textBody, err := readBody(mr)
	if err != nil {
		return nil, err
	}
	msg.Body = strings.TrimSpace(textBody)
	if msg.Body == "" && htmlBody != "" {
		msg.Body = mailtext.HTMLToText(htmlBody)
	}
	return msg, nil
}

// readBody returns the first inline text/html and text/plain parts.
// Nested multiparts are flattened by the reader. Attachments are skipped.
func readBody(mr *mail.Reader) (html, text string, err error) {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return html, text, nil
		}
		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return html, text, err
		}

		var h message.Header
		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			h = ph.Header
		case *mail.AttachmentHeader:
			if disp, _, _ := ph.ContentDisposition(); disp == "attachment" {
				continue
			}
			h = ph.Header
		default:
			continue
		}
		mediaType, _, err := h.ContentType()
		if err != nil {
			mediaType = "text/plain"
		}
		if mediaType != "text/html" && mediaType != "text/plain" {
			continue
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			return html, text, err
		}
		switch {
		case mediaType == "text/html" && html == "":
			html = string(data)
		case mediaType == "text/plain" && text == "":
			text = string(data)
		}
	}
}
