package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/reliefdesk/reliefdesk-backend/internal/aws"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/notifications"
	"github.com/reliefdesk/reliefdesk-backend/internal/queue"
)

type LocalStackEmail struct {
	ID          string    `json:"Id"`
	Timestamp   string    `json:"Timestamp"`
	Subject     string    `json:"Subject"`
	Body        EmailBody `json:"Body"`
	Destination Dest      `json:"Destination"`
}
type EmailBody struct {
	Text string `json:"text_part"`
	HTML string `json:"html_part"`
}
type Dest struct {
	ToAddresses []string `json:"ToAddresses"`
}
type LocalStackResponse struct {
	Messages []LocalStackEmail `json:"messages"`
}

var (
	enqueuePtr  = flag.Bool("enqueue", false, "Enqueue the email task instead of sending directly")
	viewPtr     = flag.Bool("view", false, "View the emails")
	testPtr     = flag.Bool("test", false, "Test sending an email")
	toPtr       = flag.String("to", "test@example.com", "Recipient")
	templatePtr = flag.String("template", notifications.TemplateStatusChanged, "Template to render")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	// this is for make email-enqueue (rendered like a real status change and
	// processed by the worker)
	if *enqueuePtr {
		subject, body, err := render(cfg.Notify.TemplateDir, *templatePtr)
		if err != nil {
			log.Fatalf("Failed to render template: %v", err)
		}

		log.Println("Initializing Redis queue...")
		q, err := queue.NewQueue(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()

		log.Printf("Enqueuing email to %s...", *toPtr)
		info, err := q.Enqueue(queue.TypeEmailDelivery, queue.EmailDeliveryPayload{
			To:      *toPtr,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			log.Fatalf("Failed to enqueue task: %v", err)
		}
		log.Printf("Task enqueued successfully! ID: %s", info.ID)
		return
	}

	if *viewPtr {
		viewEmails(cfg.AWS.EndpointURL)
		return
	}

	// this is for make email-test (sending directly through SES)
	if *testPtr {
		subject, body, err := render(cfg.Notify.TemplateDir, *templatePtr)
		if err != nil {
			log.Fatalf("Failed to render template: %v", err)
		}

		log.Println("Initializing email service...")
		svc, err := aws.NewEmailService(ctx, cfg.AWS)
		if err != nil {
			log.Fatalf("Failed to create email service: %v", err)
		}

		log.Printf("Verifying sender identity %s...", svc.Sender())
		if _, err := svc.VerifyEmailIdentity(ctx); err != nil {
			log.Fatalf("Failed to verify email identity: %v", err)
		}

		log.Printf("Sending email to %s...", *toPtr)
		if err := svc.SendEmail(ctx, *toPtr, subject, body); err != nil {
			log.Fatalf("Failed to send email: %v", err)
		}

		log.Println("Email sent successfully!")
		viewEmails(cfg.AWS.EndpointURL)
		return
	}

	flag.Usage()
}

// render fills a notification template with sample request data.
func render(dir, name string) (string, string, error) {
	tmpl, err := notifications.LoadTemplates(dir)
	if err != nil {
		return "", "", err
	}
	data := map[string]interface{}{
		"Title":       "Water tank",
		"RequestID":   "00000000-0000-0000-0000-000000000000",
		"From":        "Manager Review",
		"To":          "Forwarded",
		"Description": "Request status updated from Manager Review to Forwarded",
		"Note":        "Sent with the emailer tool",
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, name+":subject", data); err != nil {
		return "", "", err
	}
	if err := tmpl.ExecuteTemplate(&body, name+":body", data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

func viewEmails(endpoint string) {
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}
	log.Println("--- LocalStack SES Inbox ---")

	resp, err := http.Get(endpoint + "/_aws/ses")
	if err != nil {
		log.Printf("Failed to fetch LocalStack messages: %v", err)
		return
	}
	defer resp.Body.Close()

	bodyData, _ := io.ReadAll(resp.Body)
	var lsResp LocalStackResponse
	if err := json.Unmarshal(bodyData, &lsResp); err != nil {
		log.Printf("Failed to parse LocalStack response: %v\nRaw body: %s", err, string(bodyData))
		return
	}

	if len(lsResp.Messages) == 0 {
		fmt.Println("No messages found in LocalStack.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Time", "To", "Subject"})
	for i, msg := range lsResp.Messages {
		t.AppendRow(table.Row{i + 1, msg.Timestamp, msg.Destination.ToAddresses, msg.Subject})
	}
	t.Render()
}
