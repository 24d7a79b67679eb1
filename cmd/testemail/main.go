// Command testemail sends a sample import report so the SMTP settings can be
// checked without running an import.
package main

import (
	"errors"
	"flag"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"phimgg-importer/config"
	"phimgg-importer/importer"
	"phimgg-importer/notifier"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	aborted := flag.Bool("aborted", false, "send the report of a run that stopped early")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Email.Enabled() {
		log.Fatal("EMAIL_SMTP_HOST, EMAIL_SENDER and EMAIL_RECIPIENT must be set")
	}

	n, err := notifier.NewEmailNotifier(notifier.EmailConfig{
		SMTPHost:       cfg.Email.SMTPHost,
		SMTPPort:       cfg.Email.SMTPPort,
		SenderEmail:    cfg.Email.Sender,
		SenderPassword: cfg.Email.Password,
		RecipientEmail: cfg.Email.Recipient,
	})
	if err != nil {
		log.Fatalf("Failed to create notifier: %v", err)
	}

	stats := &importer.Stats{
		RunID:            "test-email",
		StartedAt:        time.Now().Add(-42 * time.Second),
		Duration:         42 * time.Second,
		PagesProcessed:   1,
		MoviesProcessed:  3,
		MoviesImported:   2,
		MoviesFailed:     1,
		EpisodesImported: 24,
		Errors: []importer.MovieError{
			{Slug: "sample-movie", Stage: importer.StageValidate, Message: "name is required"},
		},
	}
	var runErr error
	if *aborted {
		runErr = errors.New("failed to fetch page 2: HTTP 502")
	}

	log.Println("Attempting to send test email...")
	if err := n.NotifyImportResult(stats, runErr); err != nil {
		log.Fatalf("Failed to send email: %v", err)
	}
	log.Println("Email sent successfully!")
}
