// Package main provides the corretor API server: the management API, the
// webhook endpoints, the realtime hub and the live flow automation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/corretor-crm/corretor/pkg/eventbus"
	"github.com/corretor-crm/corretor/pkg/flow"
	"github.com/corretor-crm/corretor/pkg/llm"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/outbox"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/realtime"
	"github.com/corretor-crm/corretor/pkg/reengagement"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/corretor-crm/corretor/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	hub         *realtime.Hub
	dispatcher  *outbox.Dispatcher

	settings     *services.Settings
	messenger    *services.Messenger
	flows        *services.Flow
	integrations *services.Integrations
	leads        *services.Leads
	communicator *services.Communicator
	importer     *services.Importer
	runner       *services.FlowRunner
	reengagement *reengagement.Runner
}

// NewAPI wires the services. completer may be nil, which disables AI replies
// and resolves intents literally.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	queue outbox.Queue,
	completer llm.Completer,
) *API {
	var intents flow.IntentResolver
	if completer != nil {
		intents = llm.NewIntentResolver(completer)
	}

	settings := services.NewSettings(persistence)
	messenger := services.NewMessenger(persistence, queue, eventBus, logger)
	integrations := services.NewIntegrations(settings)

	a := &API{
		logger:       logger,
		persistence:  persistence,
		eventBus:     eventBus,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		settings:     settings,
		messenger:    messenger,
		flows:        services.NewFlow(persistence, eventBus, intents, logger),
		integrations: integrations,
		leads:        services.NewLeads(persistence, integrations, eventBus, logger),
		communicator: services.NewCommunicator(persistence, settings, messenger, completer, logger),
		importer:     services.NewImporter(persistence, logger),
		runner:       services.NewFlowRunner(persistence, messenger, eventBus, intents, logger),
		reengagement: reengagement.NewRunner(persistence, settings, messenger, completer, logger),
	}

	a.hub = realtime.NewHub(
		realtime.WithLogger(logger),
		realtime.WithDepartmentLookup(a.conversationDepartment),
		realtime.WithNotifier(realtime.NotifierFunc(a.notify)),
	)

	return a
}

// WithDispatcher drains the outbox in this process, which an in-memory
// queue requires.
func (a *API) WithDispatcher(dispatcher *outbox.Dispatcher) *API {
	a.dispatcher = dispatcher

	return a
}

// Messenger is shared with an in-process dispatcher for status updates.
func (a *API) Messenger() *services.Messenger {
	return a.messenger
}

func (a *API) App() *fiber.App {
	apiHandlers := web.NewAPIHandlers(a.flows, a.settings, a.integrations, a.leads, a.validate)
	webhookHandlers := web.NewWebhookHandlers(
		a.settings,
		a.leads,
		a.communicator,
		a.importer,
		a.reengagement,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Corretor API")
	})

	apiHandlers.Register(app)
	webhookHandlers.Register(app)

	return app
}

// Start serves HTTP on port and runs the hub, the flow runner and the
// in-process dispatcher until ctx is done.
func (a *API) Start(ctx context.Context, port int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := a.background(ctx, cancel)

	app := a.App()

	go func() {
		<-ctx.Done()

		err := app.Shutdown()
		if err != nil {
			a.logger.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	err := app.Listen(":" + strconv.Itoa(port))

	cancel()
	wg.Wait()

	return err
}

func (a *API) background(ctx context.Context, cancel context.CancelFunc) *sync.WaitGroup {
	a.syncActiveDepartment(ctx)

	unsubscribe := a.hub.SubscribeAll(a.runner.Listener())

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()
		defer unsubscribe()

		err := a.hub.Run(ctx, a.eventBus)
		if err != nil {
			a.logger.ErrorContext(ctx, "Realtime hub stopped", "error", err)
			cancel()
		}
	}()

	go func() {
		defer wg.Done()

		_ = a.runner.Run(ctx)
	}()

	if a.dispatcher != nil {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := a.dispatcher.Run(ctx)
			if err != nil {
				a.logger.ErrorContext(ctx, "Outbox dispatcher stopped", "error", err)
			}
		}()
	}

	return &wg
}

func (a *API) syncActiveDepartment(ctx context.Context) {
	department, err := a.settings.ActiveDepartment(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to load active department", "error", err)

		return
	}

	a.hub.SetActiveDepartment(department)
}

func (a *API) conversationDepartment(ctx context.Context, conversationID string) (models.Department, error) {
	conversation, err := a.persistence.ConversationRepository().GetByID(ctx, conversationID)
	if err != nil {
		return "", err
	}

	return conversation.Department, nil
}

func (a *API) notify(ctx context.Context, msg models.Message) {
	a.logger.InfoContext(ctx, "New message for the active department",
		"conversation_id", msg.ConversationID,
		"department", msg.Department,
		"phone", msg.Phone)
}
