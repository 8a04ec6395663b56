package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/services"
	pkghttp "github.com/ewhitfield/storefront/pkg/http"
)

// AuditHandler handles security audit log HTTP requests
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// SecurityEventResponse represents a security event in HTTP responses
type SecurityEventResponse struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	Severity  string                 `json:"severity"`
	IPAddress string                 `json:"ip_address"`
	UserID    *string                `json:"user_id,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// ListEvents returns recent security events, newest first, optionally
// filtered by severity (admin only; enforced at the route level)
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	var (
		events []*models.SecurityEvent
		err    error
	)

	if severity := r.URL.Query().Get("severity"); severity != "" {
		events, err = h.auditService.ListBySeverity(ctx, severity, limit, offset)
	} else {
		events, err = h.auditService.ListRecent(ctx, limit, offset)
	}

	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Unknown severity")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := make([]*SecurityEventResponse, len(events))
	for i, event := range events {
		response[i] = securityEventToResponse(event)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": response,
		"limit":  limit,
		"offset": offset,
	})
}

// securityEventToResponse converts a security event model to a response DTO
func securityEventToResponse(event *models.SecurityEvent) *SecurityEventResponse {
	resp := &SecurityEventResponse{
		ID:        event.ID.String(),
		EventType: event.EventType,
		Severity:  event.Severity,
		IPAddress: event.IPAddress,
		Detail:    event.Detail,
		CreatedAt: event.CreatedAt.Format(time.RFC3339),
	}

	if event.UserID != nil {
		userIDStr := event.UserID.String()
		resp.UserID = &userIDStr
	}

	return resp
}
