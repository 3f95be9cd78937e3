package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"slack-handler/internal/message"
	"slack-handler/internal/platform"
)

type outputMode string

const (
	modeHuman outputMode = "human"
	modeJSON  outputMode = "json"
	modeYAML  outputMode = "yaml"
)

// MarshalIndent is like json.MarshalIndent but leaves <, > and & unescaped
// so message text reads the way it was typed.
func MarshalIndent(v interface{}, prefix string, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeStructured(w io.Writer, mode outputMode, v interface{}) error {
	var (
		data []byte
		err  error
	)
	switch mode {
	case modeJSON:
		data, err = MarshalIndent(v, "", "  ")
	case modeYAML:
		data, err = yaml.Marshal(v)
	default:
		return errors.Errorf("unsupported output mode %q", mode)
	}
	if err != nil {
		return errors.Wrapf(err, "encoding %s", mode)
	}
	_, err = w.Write(data)
	return err
}

func renderMessages(w io.Writer, mode outputMode, msgs []message.Normalized) error {
	if mode != modeHuman {
		return writeStructured(w, mode, msgs)
	}

	fmt.Fprintf(w, "\n📬 Latest %d messages:\n\n", len(msgs))
	for i, msg := range msgs {
		fmt.Fprintf(w, "%d. [%s] %s:\n", i+1, msg.Timestamp, msg.User)
		fmt.Fprintf(w, "   %s\n\n", msg.Text)
	}
	return nil
}

func renderChannels(w io.Writer, mode outputMode, channels []platform.Channel) error {
	if mode != modeHuman {
		return writeStructured(w, mode, channels)
	}

	fmt.Fprintf(w, "\n📋 Available channels (%d):\n\n", len(channels))
	for _, ch := range channels {
		fmt.Fprintf(w, "  • %s: %s\n", ch.Name, ch.ID)
	}
	return nil
}

func renderPostAck(w io.Writer, mode outputMode, ack platform.PostAck) error {
	if mode != modeHuman {
		return writeStructured(w, mode, ack)
	}

	fmt.Fprintln(w, "✅ Message posted successfully!")
	fmt.Fprintf(w, "   Timestamp: %s\n", ack.Timestamp)
	fmt.Fprintf(w, "   Channel: %s\n", ack.Channel)
	return nil
}
