package filter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/mikey/phishing-detector/internal/core"
)

// Message is the part of an RFC 822 message the filters classify
type Message struct {
	From    string
	Subject string
	Body    string
}

// ParseMessage parses a raw message. HTML-only messages are down-converted
// to text so the lexicon sees words rather than markup.
func ParseMessage(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &Message{
		Subject: env.GetHeader("Subject"),
		Body:    env.Text,
	}

	if addrs, err := env.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = addrs[0].Address
	} else {
		msg.From = strings.TrimSpace(env.GetHeader("From"))
	}

	return msg, nil
}

// Payload builds the scoring payload. envelopeSender is used when the
// message carries no From address.
func (m *Message) Payload(envelopeSender string) core.EmailPayload {
	sender := m.From
	if sender == "" {
		sender = envelopeSender
	}
	return core.EmailPayload{Sender: sender, Body: m.Body}
}

// splitMessage splits a raw message into its header block (including the
// final line break) and body
func splitMessage(raw []byte) (header, body []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+1], raw[i+2:]
	}
	return raw, nil
}

// dropHeader removes every occurrence of the named header, including
// folded continuation lines
func dropHeader(header []byte, name string) []byte {
	var out bytes.Buffer
	skipping := false

	for _, line := range bytes.SplitAfter(header, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if skipping && (line[0] == ' ' || line[0] == '\t') {
			continue
		}
		skipping = hasHeaderName(line, name)
		if skipping {
			continue
		}
		out.Write(line)
	}

	return out.Bytes()
}

func hasHeaderName(line []byte, name string) bool {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(line[:colon])), name)
}
