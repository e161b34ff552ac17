// Package main provides the reengagement worker: it runs reengagement passes
// on a cron schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corretor-crm/corretor/pkg/cmd"
	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/log"
	"github.com/corretor-crm/corretor/pkg/otelhelper"
	"github.com/corretor-crm/corretor/pkg/reengagement"
	"github.com/corretor-crm/corretor/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "corretor-reengagement",
		Usage:                 "Follow up on conversations waiting for a lead reply",
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
				Name:    "schedule",
				Usage:   "Cron expression of the reengagement passes",
				Value:   reengagement.DefaultSchedule,
				Sources: cli.EnvVars("REENGAGEMENT_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "threshold",
				Usage:   "Silence before a conversation is followed up, unless the department overrides it",
				Value:   reengagement.DefaultThreshold,
				Sources: cli.EnvVars("REENGAGEMENT_THRESHOLD"),
			},
			&cli.IntFlag{
				Name:    "max-attempts",
				Usage:   "Follow-ups sent per conversation",
				Value:   reengagement.DefaultMaxAttempts,
				Sources: cli.EnvVars("REENGAGEMENT_MAX_ATTEMPTS"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single pass and exit",
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key of the OpenAI-compatible LLM; empty uses message templates",
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

	logger := log.WithModule("reengagement")

	if command.Bool("tracing") {
		_, shutdown, err := otelhelper.NewTracer(ctx, "corretor-reengagement")
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

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "corretor-reengagement", logger)
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

	settings := services.NewSettings(persistence)
	messenger := services.NewMessenger(persistence, queue, eventBus, logger)

	runner := reengagement.NewRunner(persistence, settings, messenger, completer, logger,
		reengagement.WithThreshold(command.Duration("threshold")),
		reengagement.WithMaxAttempts(command.Int("max-attempts")),
	)

	if command.Bool("once") {
		started := time.Now()

		result, err := runner.RunOnce(ctx)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Reengagement pass finished",
			"checked", result.Checked,
			"sent", result.Sent,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"duration", time.Since(started))

		return nil
	}

	scheduler, err := reengagement.NewScheduler(runner, command.String("schedule"), logger)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Starting Corretor reengagement scheduler", "schedule", command.String("schedule"))

	return scheduler.Run(ctx)
}
