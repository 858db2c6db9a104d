package httpapi

import (
	"errors"
	"net/http"
	"time"

	"coopquality/internal/core"
	"coopquality/internal/quality"
	"coopquality/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type scheduleRequest struct {
	Code         string          `json:"code"`
	ProductID    string          `json:"product_id"`
	LotID        string          `json:"lot_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	StandardID   string          `json:"standard_id"`
	InspectorID  string          `json:"inspector_id"`
	ScheduledFor *time.Time      `json:"scheduled_for"`
}

type startRequest struct {
	InspectorID string `json:"inspector_id"`
}

type evaluationRequest struct {
	DefinitionID  string           `json:"definition_id"`
	MeasuredValue *decimal.Decimal `json:"measured_value"`
	AssignedScore *int             `json:"assigned_score"`
	Observation   string           `json:"observation"`
	EvidenceKey   string           `json:"evidence_key"`
}

func (r evaluationRequest) input(actor string) core.EvaluationInput {
	return core.EvaluationInput{
		DefinitionID: r.DefinitionID,
		Observation: quality.Observation{
			Value:       r.MeasuredValue,
			Score:       r.AssignedScore,
			Text:        r.Observation,
			EvidenceKey: r.EvidenceKey,
			RecordedBy:  actor,
		},
	}
}

type completeRequest struct {
	Evaluations  []evaluationRequest `json:"evaluations"`
	Observations string              `json:"observations"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type inspectionResponse struct {
	Inspection domain.Inspection         `json:"inspection"`
	Results    []domain.EvaluationResult `json:"results,omitempty"`
	Warnings   []domain.Violation        `json:"warnings,omitempty"`
}

// bind decodes an optional JSON body.
func bind(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func (h *Handler) listStandards(c *gin.Context) {
	stds, err := h.svc.ListStandards(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"standards": stds})
}

func (h *Handler) listInspections(c *gin.Context) {
	out, err := h.svc.ListInspections(c.Request.Context(), core.InspectionFilter{
		State:      domain.InspectionState(c.Query("state")),
		LotID:      c.Query("lot_id"),
		StandardID: c.Query("standard_id"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inspections": out})
}

func (h *Handler) scheduleInspection(c *gin.Context) {
	var req scheduleRequest
	if !bind(c, &req) {
		return
	}
	insp := domain.Inspection{
		Code:        req.Code,
		ProductID:   req.ProductID,
		LotID:       req.LotID,
		Quantity:    req.Quantity,
		StandardID:  req.StandardID,
		InspectorID: req.InspectorID,
	}
	if req.ScheduledFor != nil {
		insp.ScheduledFor = *req.ScheduledFor
	}
	created, res, err := h.svc.ScheduleInspection(c.Request.Context(), insp)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inspectionResponse{Inspection: created, Warnings: res.Violations})
}

func (h *Handler) getInspection(c *gin.Context) {
	ctx := c.Request.Context()
	insp, err := h.svc.GetInspection(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	results, err := h.svc.ListInspectionResults(ctx, insp.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspectionResponse{Inspection: insp, Results: results})
}

func (h *Handler) startInspection(c *gin.Context) {
	var req startRequest
	if !bind(c, &req) {
		return
	}
	insp, res, err := h.svc.StartInspection(c.Request.Context(), c.Param("id"), req.InspectorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspectionResponse{Inspection: insp, Warnings: res.Violations})
}

func (h *Handler) recordEvaluation(c *gin.Context) {
	var req evaluationRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	result, res, err := h.svc.RecordEvaluation(ctx, c.Param("id"), req.input(core.ActorFrom(ctx)))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"result": result, "warnings": res.Violations})
}

func (h *Handler) completeInspection(c *gin.Context) {
	var req completeRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	completion := core.Completion{Observations: req.Observations}
	for _, ev := range req.Evaluations {
		completion.Evaluations = append(completion.Evaluations, ev.input(core.ActorFrom(ctx)))
	}
	insp, res, err := h.svc.CompleteInspection(ctx, c.Param("id"), completion)
	if err != nil {
		h.fail(c, err)
		return
	}
	results, err := h.svc.ListInspectionResults(ctx, insp.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspectionResponse{Inspection: insp, Results: results, Warnings: res.Violations})
}

func (h *Handler) cancelInspection(c *gin.Context) {
	var req cancelRequest
	if !bind(c, &req) {
		return
	}
	insp, res, err := h.svc.CancelInspection(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inspectionResponse{Inspection: insp, Warnings: res.Violations})
}

// attachEvidence accepts multipart/form-data with definition_id and file.
func (h *Handler) attachEvidence(c *gin.Context) {
	definitionID := c.PostForm("definition_id")
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, errors.New("multipart field file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()
	info, err := h.svc.AttachEvidence(c.Request.Context(), c.Param("id"), definitionID, fh.Filename, core.Upload{
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"evidence": info})
}

func (h *Handler) listEvidence(c *gin.Context) {
	out, err := h.svc.ListEvidence(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evidence": out})
}
