package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendSummaryReady(toEmail, meetingId, sessionId string) error
	SendProcessingFailed(toEmail, meetingId, reason string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	frontendURL := os.Getenv("FRONTEND_URL")

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendSummaryReady(toEmail, meetingId, sessionId string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your Consultation Summary Is Ready")

	summaryLink := fmt.Sprintf("%s/consultations/%s/summary", s.frontendURL, sessionId)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Consultation Summary Ready</h2>
			<p>The AI summary for your consultation (meeting %s) has been generated.</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">View Summary</a>
			<p>Or copy this link:</p>
			<p>%s</p>
		</div>
	`, meetingId, summaryLink, summaryLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send summary notification to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Summary notification sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendProcessingFailed(toEmail, meetingId, reason string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Consultation Recording Could Not Be Processed")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Recording Processing Failed</h2>
			<p>We could not process the recording for meeting %s.</p>
			<p>Reason: %s</p>
			<p>The raw recordings are kept, so the summary can be regenerated from the dashboard.</p>
		</div>
	`, meetingId, reason)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send failure notification to %s: %v\n", toEmail, err)
		return err
	}

	return nil
}
