package mailer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-generator/internal/config"
)

func testMailer() *Mailer {
	m := New(config.SMTPConfig{From: "hello@northwind.example", FromName: "Northwind IT"}, "https://cal.example/northwind", nil)
	m.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func readParts(t *testing.T, msg []byte) (*mail.Reader, map[string]string) {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(msg))
	require.NoError(t, err)
	parts := map[string]string{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, _, err := h.ContentType()
		require.NoError(t, err)
		b, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		parts[ct] = string(b)
	}
	return mr, parts
}

func TestComposeAssessmentReady(t *testing.T) {
	msg, err := testMailer().Compose("jane@example.com", "Jane &amp; Co", "https://files.example/a.pdf")
	require.NoError(t, err)

	mr, parts := readParts(t, msg)

	subj, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, subject, subj)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "jane@example.com", to[0].Address)
	assert.Equal(t, "Jane & Co", to[0].Name)

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Contains(t, parts, "text/plain")
	require.Contains(t, parts, "text/html")

	assert.Contains(t, parts["text/plain"], "Hi Jane & Co,")
	assert.Contains(t, parts["text/plain"], "https://files.example/a.pdf")
	assert.Contains(t, parts["text/plain"], "expires in 24 hours")

	htmlPart := parts["text/html"]
	assert.Contains(t, htmlPart, "Hi Jane &amp; Co,")
	assert.NotContains(t, htmlPart, "&amp;amp;")
	assert.Contains(t, htmlPart, `href="https://files.example/a.pdf"`)
	assert.Contains(t, htmlPart, `href="https://cal.example/northwind"`)
	assert.Contains(t, htmlPart, "expires in 24 hours")
}

func TestComposeWithoutSchedulingLink(t *testing.T) {
	m := testMailer()
	m.schedulingURL = ""
	msg, err := m.Compose("jane@example.com", "Jane", "https://files.example/a.pdf")
	require.NoError(t, err)
	_, parts := readParts(t, msg)
	assert.NotContains(t, parts["text/html"], "consultation")
	assert.NotContains(t, parts["text/plain"], "consultation")
}

func TestSendAssessmentReadyUsesSender(t *testing.T) {
	var gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := testMailer().WithSender(func(_ context.Context, from string, to []string, msg []byte) error {
		gotFrom, gotTo, gotMsg = from, to, msg
		return nil
	})

	require.NoError(t, m.SendAssessmentReady(context.Background(), "jane@example.com", "Jane", "https://files.example/a.pdf"))
	assert.Equal(t, "hello@northwind.example", gotFrom)
	assert.Equal(t, []string{"jane@example.com"}, gotTo)
	assert.NotEmpty(t, gotMsg)
}

func TestSendAssessmentReadyPropagatesRelayError(t *testing.T) {
	m := testMailer().WithSender(func(context.Context, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	})
	err := m.SendAssessmentReady(context.Background(), "jane@example.com", "Jane", "https://files.example/a.pdf")
	assert.ErrorContains(t, err, "550 mailbox unavailable")
}

// fakeSMTP accepts a single plain-text SMTP session and records the DATA
// payload.
func fakeSMTP(t *testing.T) (addr string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		reply("220 localhost ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "MAIL FROM"), strings.HasPrefix(cmd, "RCPT TO"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 End data with <CR><LF>.<CR><LF>")
				var data strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					data.WriteString(l)
				}
				out <- data.String()
				reply("250 OK queued")
			case cmd == "QUIT":
				reply("221 Bye")
				return
			default:
				reply("502 Command not implemented")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestDeliverOverPlainSMTP(t *testing.T) {
	addr, received := fakeSMTP(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := New(config.SMTPConfig{Host: host, Port: port, From: "hello@northwind.example"}, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, m.SendAssessmentReady(ctx, "jane@example.com", "Jane", "https://files.example/a.pdf"))

	select {
	case data := <-received:
		assert.Contains(t, data, "Subject: "+subject)
		assert.Contains(t, data, "multipart/")
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
