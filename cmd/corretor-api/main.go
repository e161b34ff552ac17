package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corretor-crm/corretor/pkg/cmd"
	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/log"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "corretor-api",
		Usage:                 "Serve the CRM management API and webhooks",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers, when the event bus is kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL of the outbox queue; empty keeps the queue in memory",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key of the OpenAI-compatible LLM; empty disables AI replies",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Base URL of the OpenAI-compatible LLM",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "Chat model",
				Value:   llm.DefaultModel,
				Sources: cli.EnvVars("OPENAI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-gateway-url",
				Usage:   "WhatsApp gateway URL, used by the in-process dispatcher",
				Sources: cli.EnvVars("WHATSAPP_GATEWAY_URL"),
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

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Corretor API")

	if command.Bool("tracing") {
		_, shutdown, err := otelhelper.NewTracer(ctx, "corretor-api")
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

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "corretor-api", logger)
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

	completer := cmd.NewCompleter(ctx, logger, llm.Config{
		APIKey:  command.String("openai-api-key"),
		BaseURL: command.String("openai-base-url"),
		Model:   command.String("openai-model"),
	})

	api := NewAPI(logger, persistence, eventBus, queue, completer)

	if command.String("redis-url") == "" {
		sender := cmd.NewWhatsAppSender(command.String("whatsapp-gateway-url"), command.String("whatsapp-gateway-token"))
		api.WithDispatcher(cmd.NewDispatcher(queue, sender, persistence, api.Messenger(), logger))
	}

	return api.Start(ctx, command.Int("port"))
}
