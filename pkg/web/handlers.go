package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// APIHandlers serves the management API used by the CRM front end.
type APIHandlers struct {
	flowService     *services.Flow
	settingsService *services.Settings
	integrations    *services.Integrations
	leads           *services.Leads
	validator       *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	settingsService *services.Settings,
	integrations *services.Integrations,
	leads *services.Leads,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:     flowService,
		settingsService: settingsService,
		integrations:    integrations,
		leads:           leads,
		validator:       validator,
	}
}

// Register mounts the management routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	f := router.Group("/flows")
	f.Get("/", h.GetFlows)
	f.Post("/", h.CreateFlow)
	f.Get("/templates", h.GetTemplates)
	f.Post("/test", h.TestFlowDefinition)
	f.Get("/:id", h.GetFlow)
	f.Patch("/:id", h.UpdateFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Post("/:id/publish", h.PublishFlow)
	f.Post("/:id/deactivate", h.DeactivateFlow)
	f.Post("/:id/test", h.TestFlow)

	s := router.Group("/settings")
	s.Get("/behavior/:department", h.GetBehavior)
	s.Put("/behavior/:department", h.PutBehavior)
	s.Get("/prompt/:department", h.GetPrompt)
	s.Get("/:key", h.GetSetting)
	s.Put("/:key", h.PutSetting)

	i := router.Group("/integrations")
	i.Get("/elevenlabs/voices", h.GetElevenLabsVoices)
	i.Get("/clickup/tasks", h.GetClickUpTasks)

	router.Get("/leads", h.GetLeadLogs)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	req, err := h.parseListFlowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.flowService.ListFlows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows":         result.Flows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func (h *APIHandlers) parseListFlowsRequest(c fiber.Ctx) (*services.ListFlowsRequest, error) {
	req := &services.ListFlowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if departmentStr := c.Query("department"); departmentStr != "" {
		department := models.Department(departmentStr)
		req.Department = &department
	}

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return nil, err
		}

		req.Active = &active
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	department, err := models.ParseDepartment(req.Department)
	if err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowService.Create(c.Context(), services.CreateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
		Department:  department,
		TemplateID:  req.TemplateID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := services.UpdateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	}

	if req.Department != nil {
		department, err := models.ParseDepartment(*req.Department)
		if err != nil {
			return badRequest(c, err.Error())
		}

		update.Department = &department
	}

	updated, err := h.flowService.Update(c.Context(), c.Params("id"), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	err := h.flowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishFlow(c fiber.Ctx) error {
	published, err := h.flowService.Publish(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) DeactivateFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) TestFlow(c fiber.Ctx) error {
	var req TestFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	testReq := services.TestFlowRequest{Inputs: req.Inputs, Variables: req.Variables, Tags: req.Tags}

	result, err := h.flowService.Test(c.Context(), c.Params("id"), testReq)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// TestFlowDefinition runs the flow drawn on the canvas without saving it.
func (h *APIHandlers) TestFlowDefinition(c fiber.Ctx) error {
	var req TestFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if req.Flow == nil {
		return badRequest(c, "flow is required")
	}

	testReq := services.TestFlowRequest{Inputs: req.Inputs, Variables: req.Variables, Tags: req.Tags}

	result, err := h.flowService.TestDefinition(c.Context(), req.Flow, testReq)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	return c.JSON(h.flowService.Templates())
}

func (h *APIHandlers) GetSetting(c fiber.Ctx) error {
	setting, err := h.settingsService.Get(c.Context(), c.Params("key"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(setting)
}

func (h *APIHandlers) PutSetting(c fiber.Ctx) error {
	var req SetSettingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	setting, err := h.settingsService.Set(c.Context(), c.Params("key"), req.Value)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(setting)
}

func (h *APIHandlers) GetBehavior(c fiber.Ctx) error {
	department, err := models.ParseDepartment(c.Params("department"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	behavior, err := h.settingsService.Behavior(c.Context(), department)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(behavior)
}

func (h *APIHandlers) PutBehavior(c fiber.Ctx) error {
	department, err := models.ParseDepartment(c.Params("department"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req BehaviorRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rules := req.BusinessRules
	if rules == nil {
		rules = []string{}
	}

	saved, err := h.settingsService.SaveBehavior(c.Context(), &models.BehaviorConfig{
		Department:         department,
		AgentName:          req.AgentName,
		CompanyName:        req.CompanyName,
		Tone:               req.Tone,
		BusinessRules:      rules,
		Script:             req.Script,
		CustomInstructions: req.CustomInstructions,
		PromptOverride:     req.PromptOverride,
		ReengagementHours:  req.ReengagementHours,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

// GetPrompt previews the system prompt the AI agent uses for a department.
func (h *APIHandlers) GetPrompt(c fiber.Ctx) error {
	department, err := models.ParseDepartment(c.Params("department"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	prompt, err := h.settingsService.Prompt(c.Context(), department)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(prompt)
}

func (h *APIHandlers) GetElevenLabsVoices(c fiber.Ctx) error {
	voices, err := h.integrations.ElevenLabsVoices(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"voices": voices})
}

func (h *APIHandlers) GetClickUpTasks(c fiber.Ctx) error {
	tasks, err := h.integrations.ClickUpTasks(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *APIHandlers) GetLeadLogs(c fiber.Ctx) error {
	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		limit = parsed
	}

	logs, err := h.leads.Recent(c.Context(), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"leads": logs})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Corretor API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Corretor API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
