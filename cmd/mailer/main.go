// Command mailer delivers the account emails the API queues when
// MAIL_DRIVER=amqp.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/app"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/mail"
)

func main() {
	cfg := app.LoadConfig()
	if cfg.AMQPURL == "" {
		log.Fatalf("AMQP_URL is required")
	}
	if cfg.MailDelivery == app.MailDriverSES && cfg.MailFrom == "" {
		log.Fatalf("MAIL_FROM is required for ses delivery")
	}

	logger := app.NewLogger(cfg, "gatekeeper-mailer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	delivery, _, err := app.NewSender(ctx, cfg, cfg.MailDelivery)
	if err != nil {
		log.Fatalf("failed to initialize mail delivery: %v", err)
	}

	dispatcher := mail.NewDispatcher(cfg.AMQPURL, cfg.MailQueue, delivery, logger)
	dispatcher.Start()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	dispatcher.Stop()
}
