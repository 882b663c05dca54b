package email

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/notifications"
)

type envelope struct {
	from, to string
	data     []string
}

// fakeSMTP accepts a single session and reports the envelope it received.
func fakeSMTP(t *testing.T) (string, int, <-chan envelope) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan envelope, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		var env envelope
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(line, "MAIL FROM:"):
				env.from = strings.Trim(strings.TrimPrefix(line, "MAIL FROM:"), "<>")
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(line, "RCPT TO:"):
				env.to = strings.Trim(strings.TrimPrefix(line, "RCPT TO:"), "<>")
				_ = tp.PrintfLine("250 OK")
			case line == "DATA":
				_ = tp.PrintfLine("354 end with <CRLF>.<CRLF>")
				env.data, _ = tp.ReadDotLines()
				_ = tp.PrintfLine("250 OK")
			case line == "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- env
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p, out
}

func TestSMTPSender_Send(t *testing.T) {
	host, port, received := fakeSMTP(t)
	s := NewSMTPSender(Config{Host: host, Port: port, From: "clinic@example.com", Timeout: 5 * time.Second})

	err := s.Send(context.Background(), notifications.Message{
		To:      "ada@example.com",
		Subject: "Your appointment is booked",
		Body:    "Hello Ada,\nsee you soon.",
	})
	require.NoError(t, err)

	select {
	case env := <-received:
		assert.Equal(t, "clinic@example.com", env.from)
		assert.Equal(t, "ada@example.com", env.to)
		assert.Contains(t, env.data, "Subject: Your appointment is booked")
		assert.Contains(t, env.data, "Hello Ada,")
		assert.Contains(t, env.data, "see you soon.")
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session not completed")
	}
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	s := NewSMTPSender(Config{Host: "127.0.0.1", Port: addr.Port, Timeout: time.Second})
	err = s.Send(context.Background(), notifications.Message{To: "ada@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}

func TestSMTPSender_EmptyRecipient(t *testing.T) {
	s := NewSMTPSender(Config{Host: "127.0.0.1", Port: 25})
	require.Error(t, s.Send(context.Background(), notifications.Message{}))
}

func TestBuildMessage_NormalizesLineEndings(t *testing.T) {
	msg := buildMessage("a@x", "b@y", "hi", "one\ntwo\r\nthree")
	assert.Contains(t, msg, "one\r\ntwo\r\nthree\r\n")
	assert.NotContains(t, msg, "\r\r\n")
	assert.True(t, strings.HasPrefix(msg, "From: a@x\r\nTo: b@y\r\nSubject: hi\r\n"))
}
