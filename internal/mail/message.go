package mail

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Template string

const (
	TemplateRegistration  Template = "registration"
	TemplateResetPassword Template = "reset_password"
)

// Message is one outbound email as it travels through the stream.
type Message struct {
	Template Template          `json:"template"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Vars     map[string]string `json:"vars"`
}

const payloadField = "payload"

var ErrMalformedMessage = errors.New("malformed mail message")

// Values encodes the message as stream entry fields.
func (m Message) Values() (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"template":   string(m.Template),
		payloadField: string(raw),
	}, nil
}

func Decode(values map[string]any) (Message, error) {
	raw, ok := values[payloadField].(string)
	if !ok || raw == "" {
		return Message{}, fmt.Errorf("%w: missing payload", ErrMalformedMessage)
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.To == "" || msg.Template == "" {
		return Message{}, fmt.Errorf("%w: missing recipient or template", ErrMalformedMessage)
	}
	return msg, nil
}

func RegistrationMessage(to, username, link string) Message {
	return Message{
		Template: TemplateRegistration,
		To:       to,
		Subject:  "Confirm your email",
		Vars: map[string]string{
			"username": username,
			"link":     link,
		},
	}
}

func ResetPasswordMessage(to, username, link string) Message {
	return Message{
		Template: TemplateResetPassword,
		To:       to,
		Subject:  "Reset your password",
		Vars: map[string]string{
			"username": username,
			"link":     link,
		},
	}
}
