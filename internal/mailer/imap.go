package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// Session is an authenticated IMAP connection.
type Session struct {
	client *imapclient.Client
}

// Dial opens an IMAP connection with the given credentials and logs in.
// Self-signed certificates are tolerated.
func Dial(_ context.Context, creds Credentials) (*Session, error) {
	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)
	options := &imapclient.Options{
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}

	var client *imapclient.Client
	var err error
	if creds.TLS {
		client, err = imapclient.DialTLS(addr, options)
	} else {
		client, err = imapclient.DialStartTLS(addr, options)
	}
	if err != nil {
		return nil, &ConnError{Op: "dial " + addr, Err: err}
	}

	if err := client.Login(creds.Username, creds.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &ConnError{Op: "login " + creds.Username, Err: err}
	}

	return &Session{client: client}, nil
}

// FetchSince selects the folder and returns unseen messages received since
// the watermark, parsed into Records. Messages that cannot be normalized into
// a complete Record are dropped. No ordering is guaranteed.
func (s *Session) FetchSince(_ context.Context, folder string, since time.Time) ([]Record, error) {
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{
		Since:   since,
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var records []Record
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		record := recordFromBuffer(buf, bodySection)
		if !record.Complete() {
			continue
		}
		records = append(records, record)
	}

	if err := fetchCmd.Close(); err != nil {
		return records, fmt.Errorf("fetching from %s: %w", folder, err)
	}

	return records, nil
}

// Close logs out and tears down the connection.
func (s *Session) Close() error {
	return s.client.Logout().Wait()
}

func recordFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) Record {
	var record Record

	if buf.Envelope != nil {
		record.MessageID = strings.TrimSpace(buf.Envelope.MessageID)
		record.Subject = buf.Envelope.Subject
		record.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			record.From = formatAddress(buf.Envelope.From[0])
		}
		for _, to := range buf.Envelope.To {
			record.To = append(record.To, to.Addr())
		}
		for _, cc := range buf.Envelope.Cc {
			record.CC = append(record.CC, cc.Addr())
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		record.Text, record.HTML = parseBody(raw)
	}

	return record
}

func formatAddress(addr imap.Address) string {
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, addr.Addr())
	}
	return addr.Addr()
}

// parseBody extracts the text/plain and text/html parts out of a raw RFC 822
// body. A message that fails MIME parsing entirely is treated as plain text.
func parseBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(string(raw)), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = strings.TrimSpace(string(body))
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = strings.TrimSpace(string(body))
		}
	}

	return textBody, htmlBody
}
