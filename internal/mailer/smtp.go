package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SendReply delivers a reply over SMTP using the given credentials. The
// subject gets a "Re: " prefix if not already present, and the threading
// headers point at the original message.
func SendReply(creds Credentials, reply Reply) error {
	to := ExtractReplyAddress(reply.OrigFrom)
	msg := buildReplyMessage(reply, to)

	addr := fmt.Sprintf("%s:%d", creds.SMTPHost, creds.SMTPPort)
	auth := smtp.PlainAuth("", creds.Username, creds.Password, creds.SMTPHost)
	tlsConfig := &tls.Config{
		ServerName:         creds.SMTPHost,
		InsecureSkipVerify: true,
	}

	client, err := dialSMTP(addr, creds.SMTPSecure, tlsConfig)
	if err != nil {
		return &ConnError{Op: "dial " + addr, Err: err}
	}
	defer client.Close()

	if !creds.SMTPSecure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return &ConnError{Op: "starttls", Err: err}
			}
		}
	}

	if err := client.Auth(auth); err != nil {
		return &ConnError{Op: "auth " + creds.Username, Err: err}
	}

	if err := client.Mail(reply.FromAddress); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}

	return client.Quit()
}

// dialSMTP opens either an implicit-TLS connection (port 465 style) or a
// plain one to be upgraded via STARTTLS.
func dialSMTP(addr string, secure bool, tlsConfig *tls.Config) (*smtp.Client, error) {
	if secure {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		host := addr[:strings.LastIndex(addr, ":")]
		return smtp.NewClient(conn, host)
	}
	return smtp.Dial(addr)
}

func buildReplyMessage(reply Reply, to string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", reply.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", ReplySubject(reply.OrigSubject))
	if reply.OrigMessageID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", reply.OrigMessageID)
		fmt.Fprintf(&b, "References: %s\r\n", reply.OrigMessageID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(reply.Body)
	return []byte(b.String())
}
