package mailer

// EmailJob is the JSON payload placed on the notifications queue. The worker
// renders nothing; the producer ships a finished subject and body.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}
