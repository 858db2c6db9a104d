package httpapi

import (
	"context"
	"net/http"
	"time"

	"coopquality/internal/core"
	"coopquality/pkg/domain"

	"github.com/gin-gonic/gin"
)

type defectRequest struct {
	Description string             `json:"description"`
	Severity    domain.Criticality `json:"severity"`
}

type advanceDefectRequest struct {
	State            domain.DefectState `json:"state"`
	CorrectiveAction string             `json:"corrective_action"`
}

type certificationRequest struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Issuer     string    `json:"issuer"`
	ProductID  string    `json:"product_id"`
	CategoryID string    `json:"category_id"`
	IssuedOn   time.Time `json:"issued_on"`
	ExpiresOn  time.Time `json:"expires_on"`
}

type renewRequest struct {
	ExpiresOn time.Time `json:"expires_on"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type acknowledgeRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) listDefects(c *gin.Context) {
	out, err := h.svc.ListDefects(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"defects": out})
}

func (h *Handler) reportDefect(c *gin.Context) {
	var req defectRequest
	if !bind(c, &req) {
		return
	}
	defect, _, err := h.svc.ReportDefect(c.Request.Context(), domain.Defect{
		InspectionID: c.Param("id"),
		Description:  req.Description,
		Severity:     req.Severity,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"defect": defect})
}

func (h *Handler) advanceDefect(c *gin.Context) {
	var req advanceDefectRequest
	if !bind(c, &req) {
		return
	}
	defect, _, err := h.svc.AdvanceDefect(c.Request.Context(), c.Param("id"), req.State, req.CorrectiveAction)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"defect": defect})
}

func (h *Handler) listCertifications(c *gin.Context) {
	out, err := h.svc.ListCertifications(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certifications": out})
}

func (h *Handler) createCertification(c *gin.Context) {
	var req certificationRequest
	if !bind(c, &req) {
		return
	}
	cert, _, err := h.svc.CreateCertification(c.Request.Context(), domain.Certification{
		Code:       req.Code,
		Name:       req.Name,
		Issuer:     req.Issuer,
		ProductID:  req.ProductID,
		CategoryID: req.CategoryID,
		IssuedOn:   req.IssuedOn,
		ExpiresOn:  req.ExpiresOn,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"certification": cert})
}

func (h *Handler) sweepCertifications(c *gin.Context) {
	report, _, err := h.svc.SweepCertifications(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) renewCertification(c *gin.Context) {
	var req renewRequest
	if !bind(c, &req) {
		return
	}
	cert, _, err := h.svc.RenewCertification(c.Request.Context(), c.Param("id"), req.ExpiresOn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"certification": cert})
}

func (h *Handler) suspendCertification(c *gin.Context) {
	h.moveCertification(c, h.svc.SuspendCertification)
}

func (h *Handler) revokeCertification(c *gin.Context) {
	h.moveCertification(c, h.svc.RevokeCertification)
}

func (h *Handler) moveCertification(c *gin.Context, move func(ctx context.Context, id, reason string) (domain.Certification, domain.Result, error)) {
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	cert, _, err := move(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certification": cert})
}

func (h *Handler) listAlerts(c *gin.Context) {
	out, err := h.svc.ListAlerts(c.Request.Context(), core.AlertFilter{
		State:    domain.AlertState(c.Query("state")),
		Type:     domain.AlertType(c.Query("type")),
		Severity: domain.Criticality(c.Query("severity")),
		EntityID: c.Query("entity_id"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

func (h *Handler) acknowledgeAlert(c *gin.Context) {
	var req acknowledgeRequest
	if !bind(c, &req) {
		return
	}
	alert, _, err := h.svc.AcknowledgeAlert(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

func (h *Handler) resolveAlert(c *gin.Context) {
	h.closeAlert(c, h.svc.ResolveAlert)
}

func (h *Handler) dismissAlert(c *gin.Context) {
	h.closeAlert(c, h.svc.DismissAlert)
}

func (h *Handler) closeAlert(c *gin.Context, closeFn func(ctx context.Context, id string) (domain.Alert, domain.Result, error)) {
	alert, _, err := closeFn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}
