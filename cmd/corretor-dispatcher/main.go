// Package main provides the outbox dispatcher: it drains the Redis outbox
// into the WhatsApp gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corretor-crm/corretor/pkg/cmd"
	"github.com/corretor-crm/corretor/pkg/log"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "corretor-dispatcher",
		Usage:                 "Deliver queued WhatsApp messages",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis URL of the outbox queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers, when the event bus is kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:     "whatsapp-gateway-url",
				Usage:    "WhatsApp gateway URL",
				Required: true,
				Sources:  cli.EnvVars("WHATSAPP_GATEWAY_URL"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-gateway-token",
				Usage:   "Bearer token of the WhatsApp gateway",
				Sources: cli.EnvVars("WHATSAPP_GATEWAY_TOKEN"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("dispatcher")

	if command.Bool("tracing") {
		_, shutdown, err := otelhelper.NewTracer(ctx, "corretor-dispatcher")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "corretor-dispatcher", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	queue, err := cmd.NewQueue(ctx, logger, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("Failed to close outbox", "error", err)
		}
	}()

	messenger := services.NewMessenger(persistence, queue, eventBus, logger)
	sender := cmd.NewWhatsAppSender(command.String("whatsapp-gateway-url"), command.String("whatsapp-gateway-token"))

	logger.InfoContext(ctx, "Starting Corretor dispatcher")

	return cmd.NewDispatcher(queue, sender, persistence, messenger, logger).Run(ctx)
}
