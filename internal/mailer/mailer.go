// Package mailer talks to the user's mail provider: it fetches new messages
// over IMAP and sends replies over SMTP. Certificate validation is relaxed on
// both protocols to tolerate self-signed endpoints.
package mailer

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Credentials is the decrypted form of the stored credential blob.
type Credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	TLS        bool   `json:"tls"`
	SMTPHost   string `json:"smtpHost"`
	SMTPPort   int    `json:"smtpPort"`
	SMTPSecure bool   `json:"smtpSecure"`
}

// Record is a fetched message normalized out of its MIME form.
type Record struct {
	MessageID string
	From      string
	To        []string
	CC        []string
	Subject   string
	Date      time.Time
	Text      string
	HTML      string
}

// Complete reports whether the record carries the minimum fields the sync
// pipeline needs. Incomplete records are dropped, not surfaced as errors.
func (r Record) Complete() bool {
	return r.MessageID != "" && r.From != "" && len(r.To) > 0 && r.Text != ""
}

// ConnError wraps network or authentication failures against the mail server.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("mail connection failed (%s): %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// Reply describes an outgoing reply to a previously fetched email.
type Reply struct {
	FromAddress   string // the user's account address
	OrigFrom      string // From header of the email being answered
	OrigSubject   string
	OrigMessageID string
	Body          string
}

// ReplySubject prefixes a subject with "Re: " unless it already carries one.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// ExtractReplyAddress pulls the bare address out of a From header. It tries a
// structured parse first, then the bracketed form, then a trailing bare
// address, and fails open to the raw value when nothing matches.
func ExtractReplyAddress(from string) string {
	from = strings.TrimSpace(from)

	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}

	if open := strings.LastIndex(from, "<"); open >= 0 {
		if close := strings.Index(from[open:], ">"); close > 1 {
			return strings.TrimSpace(from[open+1 : open+close])
		}
	}

	fields := strings.Fields(from)
	for i := len(fields) - 1; i >= 0; i-- {
		if strings.Contains(fields[i], "@") {
			return strings.Trim(fields[i], "<>,;")
		}
	}

	return from
}
