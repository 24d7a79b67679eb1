package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"phimgg-importer/importer"
)

// maxListedErrors caps how many itemized errors go into one email.
const maxListedErrors = 50

// EmailNotifier handles sending email notifications
type EmailNotifier struct {
	smtpHost       string
	smtpPort       int
	username       string
	senderEmail    string
	senderPass     string
	recipientEmail string
	htmlTemplate   *template.Template
	send           func(*gomail.Message) error
}

// EmailConfig contains configuration for email notifications
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	// Username defaults to SenderEmail.
	Username       string
	SenderEmail    string
	SenderPassword string
	RecipientEmail string
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>PhimGG - Catalog Import</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #e50914; }
        h2 { color: #0071c5; margin-top: 30px; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th { background-color: #f4f4f4; text-align: left; padding: 10px; }
        td { padding: 10px; border-bottom: 1px solid #ddd; }
        .failed { color: #e50914; font-weight: bold; }
        .fatal { background-color: #fff3e0; padding: 10px; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
    </style>
</head>
<body>
    <h1>PhimGG - Catalog Import</h1>
    <p>Run {{.RunID}} finished on {{.Date}} after {{.Duration}}.</p>

    {{if .RunError}}
    <p class="fatal">The run stopped early: {{.RunError}}</p>
    {{end}}

    <table>
        <tr><th></th><th>Imported</th><th>Skipped</th><th>Failed</th></tr>
        <tr>
            <td>Movies ({{.Stats.MoviesProcessed}} processed)</td>
            <td>{{.Stats.MoviesImported}}</td>
            <td>{{.Stats.MoviesSkipped}}</td>
            <td class="{{if .Stats.MoviesFailed}}failed{{end}}">{{.Stats.MoviesFailed}}</td>
        </tr>
        <tr>
            <td>Episodes</td>
            <td>{{.Stats.EpisodesImported}}</td>
            <td>{{.Stats.EpisodesSkipped}}</td>
            <td class="{{if .Stats.EpisodesFailed}}failed{{end}}">{{.Stats.EpisodesFailed}}</td>
        </tr>
    </table>
    <p>Pages processed: {{.Stats.PagesProcessed}}</p>

    {{if .Errors}}
    <h2>Errors ({{.ErrorCount}})</h2>
    <table>
        <tr><th>Slug</th><th>Stage</th><th>Message</th></tr>
        {{range .Errors}}
        <tr><td>{{.Slug}}</td><td>{{.Stage}}</td><td>{{.Message}}</td></tr>
        {{end}}
    </table>
    {{if .Truncated}}<p>... and {{.Truncated}} more.</p>{{end}}
    {{end}}

    <div class="footer">
        <p>This is an automated email from the PhimGG importer. Please do not reply.</p>
    </div>
</body>
</html>
`

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	tmpl, err := template.New("email").Parse(emailTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	username := config.Username
	if username == "" {
		username = config.SenderEmail
	}

	passwordDisplay := ""
	if len(config.SenderPassword) > 8 {
		passwordDisplay = config.SenderPassword[:4] + "..." + config.SenderPassword[len(config.SenderPassword)-4:]
	} else if config.SenderPassword != "" {
		passwordDisplay = "***"
	}
	log.Printf("Email Configuration: Host=%s, Port=%d, Sender=%s, Token=%s, Recipient=%s",
		config.SMTPHost, config.SMTPPort, config.SenderEmail, passwordDisplay, config.RecipientEmail)

	n := &EmailNotifier{
		smtpHost:       config.SMTPHost,
		smtpPort:       config.SMTPPort,
		username:       username,
		senderEmail:    config.SenderEmail,
		senderPass:     config.SenderPassword,
		recipientEmail: config.RecipientEmail,
		htmlTemplate:   tmpl,
	}
	n.send = n.dialAndSend
	return n, nil
}

func (n *EmailNotifier) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(n.smtpHost, n.smtpPort, n.username, n.senderPass)
	return d.DialAndSend(m)
}

type emailData struct {
	RunID      string
	Date       string
	Duration   string
	RunError   string
	Stats      *importer.Stats
	Errors     []importer.MovieError
	ErrorCount int
	Truncated  int
}

// render builds the subject, the plain-text body and the HTML body.
func (n *EmailNotifier) render(stats *importer.Stats, runErr error) (string, string, string, error) {
	data := emailData{
		RunID:      stats.RunID,
		Date:       time.Now().Format("January 2, 2006 at 3:04 PM"),
		Duration:   stats.Duration.Round(time.Second).String(),
		Stats:      stats,
		Errors:     stats.Errors,
		ErrorCount: len(stats.Errors),
	}
	if runErr != nil {
		data.RunError = runErr.Error()
	}
	if len(data.Errors) > maxListedErrors {
		data.Truncated = len(data.Errors) - maxListedErrors
		data.Errors = data.Errors[:maxListedErrors]
	}

	var html bytes.Buffer
	if err := n.htmlTemplate.Execute(&html, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render email template: %w", err)
	}

	status := "OK"
	switch {
	case runErr != nil:
		status = "ABORTED"
	case stats.HasFailures():
		status = "WITH FAILURES"
	}
	subject := fmt.Sprintf("PhimGG import %s: %d new movies, %d episodes",
		status, stats.MoviesImported, stats.EpisodesImported)

	var plain strings.Builder
	plain.WriteString("PhimGG catalog import\n")
	if runErr != nil {
		fmt.Fprintf(&plain, "\nThe run stopped early: %s\n", data.RunError)
	}
	// same error cap as the HTML part
	summary := *stats
	summary.Errors = data.Errors
	if err := summary.WriteSummary(&plain); err != nil {
		return "", "", "", err
	}
	if data.Truncated > 0 {
		fmt.Fprintf(&plain, "  ... and %d more.\n", data.Truncated)
	}
	plain.WriteString("\nThis is an automated email from the PhimGG importer. Please do not reply.")

	return subject, plain.String(), html.String(), nil
}

// NotifyImportResult emails the outcome of an import. Runs that processed
// nothing and did not fail are not reported.
func (n *EmailNotifier) NotifyImportResult(stats *importer.Stats, runErr error) error {
	if stats == nil {
		stats = &importer.Stats{}
	}
	if stats.MoviesProcessed == 0 && runErr == nil {
		log.Println("No movies processed, skipping notification")
		return nil
	}

	if n.recipientEmail == "" {
		log.Println("No recipient email configured, skipping notification")
		return nil
	}

	subject, plain, html, err := n.render(stats, runErr)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Import notification sent to %s", n.recipientEmail)
	return nil
}
