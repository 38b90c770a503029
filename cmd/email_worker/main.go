package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/clinicore/authorization/config"
	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
	"github.com/clinicore/authorization/pkg/helpers"
	"github.com/clinicore/authorization/pkg/mailer"
)

// Standalone worker that drains the email queue and delivers via Mailgun.
// Runs separately from the API so slow upstream delivery never backs up
// request handling.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)

	handler := func(ctx context.Context, env rabbitmq.Envelope) error {
		var job mailer.EmailJob
		if err := env.DecodePayload(rabbitmq.KindEmailJob, &job); err != nil {
			// Misrouted or malformed job; requeueing cannot fix it.
			logger.WithError(err).WithField("message_id", env.MessageID).Error("email job dropped")
			return nil
		}
		if err := mg.Send(ctx, job.To, job.Subject, job.Text, job.HTML); err != nil {
			return err
		}
		logger.WithField("to", job.To).Info("email delivered")
		return nil
	}

	consumer := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger, []rabbitmq.Binding{
		{Queue: cfg.RabbitMQEmailQueue, Handler: handler},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()
	logger.Infof("email worker consuming %s", cfg.RabbitMQEmailQueue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down email worker")
	cancel()
	<-done // let an in-flight delivery finish before exiting
}
