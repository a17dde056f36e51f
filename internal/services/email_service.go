package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type EmailMessage struct {
	ToName      string
	ToAddress   string
	Subject     string
	TextContent string
	HTMLContent string
}

type EmailSender interface {
	Send(ctx context.Context, message EmailMessage) error
}

type SendgridEmailSender struct {
	key  string
	from *sgmail.Email
	api  func(req sendgridRequest) (int, string, error)
}

type sendgridRequest struct {
	key  string
	body []byte
}

func NewSendgridEmailSender(key, fromName, fromAddress string) *SendgridEmailSender {
	return &SendgridEmailSender{
		key:  key,
		from: sgmail.NewEmail(fromName, fromAddress),
		api:  callSendgrid,
	}
}

func (s *SendgridEmailSender) Send(ctx context.Context, message EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message.ToAddress == "" {
		return ErrInvalidInput
	}

	p := sgmail.NewPersonalization()
	p.Subject = message.Subject
	p.AddTos(sgmail.NewEmail(message.ToName, message.ToAddress))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", message.TextContent),
		sgmail.NewContent("text/html", message.HTMLContent),
	)

	status, body, err := s.api(sendgridRequest{key: s.key, body: sgmail.GetRequestBody(m)})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("send email: status %d: %s", status, body)
	}
	return nil
}

func callSendgrid(r sendgridRequest) (int, string, error) {
	req := sendgrid.GetRequest(r.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = r.body

	res, err := sendgrid.API(req)
	if err != nil {
		return 0, "", err
	}
	return res.StatusCode, res.Body, nil
}
