package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-support/internal/agent"
	"github.com/spec-kit/campus-support/internal/api/dto"
	"github.com/spec-kit/campus-support/internal/classify"
	"github.com/spec-kit/campus-support/internal/service"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// AgentHandler serves the classifier endpoints and the agent trigger.
type AgentHandler struct {
	classifier   classify.Classifier
	orchestrator *agent.Orchestrator
	lifecycle    *service.LifecycleService
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(classifier classify.Classifier, orchestrator *agent.Orchestrator, lifecycle *service.LifecycleService) *AgentHandler {
	return &AgentHandler{classifier: classifier, orchestrator: orchestrator, lifecycle: lifecycle}
}

// Suggest classifies a free-text description.
func (h *AgentHandler) Suggest(c *fiber.Ctx) error {
	var req dto.SuggestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("description required", nil)
	}

	suggestion := h.classifier.Suggest(c.UserContext(), req.Description)
	return c.JSON(dto.SuggestResponse{
		Category:   suggestion.Category,
		Priority:   string(suggestion.Priority),
		Confidence: suggestion.Confidence,
	})
}

// Insights summarizes a ticket and drafts a reply for the responder.
// Visibility follows the same rules as viewing the ticket.
func (h *AgentHandler) Insights(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	insight := h.classifier.Insights(c.UserContext(), ticket.Description)
	return c.JSON(dto.InsightResponse{
		Summary:    insight.Summary,
		DraftReply: insight.DraftReply,
	})
}

// Process runs the automated triage pipeline over one ticket. The route
// is shared-secret gated; the run report is the response for failed runs
// too, so the status is always 200.
func (h *AgentHandler) Process(c *fiber.Ctx) error {
	run := h.orchestrator.Process(c.UserContext(), c.Params("id"))
	return c.JSON(dto.AgentRunResponse{Run: run})
}
