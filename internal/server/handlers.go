package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/watchlist/records"
	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// respondError maps the error taxonomy onto HTTP status codes
func (h *handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch pkgerrors.KindOf(err) {
	case pkgerrors.KindValidation:
		status = http.StatusBadRequest
	case pkgerrors.KindNotFound:
		status = http.StatusNotFound
	case pkgerrors.KindConflict:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parsePage(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return page, pageSize
}

// --- alerts ---

func (h *handlers) listAlerts(c *gin.Context) {
	var status *models.AlertStatus
	if raw := c.Query("status"); raw != "" {
		s := models.AlertStatus(raw)
		switch s {
		case models.AlertStatusUnread, models.AlertStatusRead, models.AlertStatusDiscarded:
			status = &s
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown alert status"})
			return
		}
	}
	page, pageSize := parsePage(c)
	alerts, err := h.deps.Triage.List(c.Request.Context(), status, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "page": page})
}

func (h *handlers) unreadCount(c *gin.Context) {
	count, err := h.deps.Triage.CountUnread(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *handlers) getAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	alert, err := h.deps.Triage.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

type triageRequest struct {
	ReviewerID uuid.UUID `json:"reviewer_id" binding:"required"`
	Notes      string    `json:"notes"`
}

func (h *handlers) markRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req triageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := h.deps.Triage.MarkRead(c.Request.Context(), id, req.ReviewerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *handlers) discardAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req triageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := h.deps.Triage.Discard(c.Request.Context(), id, req.ReviewerID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *handlers) attachReview(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req triageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := h.deps.Triage.AttachReview(c.Request.Context(), id, req.ReviewerID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// --- ingestion ---

type ingestRequest struct {
	BatchID uuid.UUID                  `json:"batch_id" binding:"required"`
	Records []models.TransactionRecord `json:"records" binding:"required"`
}

func (h *handlers) ingestBatch(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range req.Records {
		req.Records[i].BatchID = req.BatchID
	}
	if err := h.deps.Records.SaveBatch(c.Request.Context(), req.Records); err != nil {
		h.respondError(c, err)
		return
	}
	report := h.deps.Engine.OnBatchIngested(c.Request.Context(), req.BatchID, req.Records)
	c.JSON(http.StatusAccepted, report)
}

// --- watchlist administration ---

func (h *handlers) createPerson(c *gin.Context) {
	var person models.WatchlistPerson
	if err := c.ShouldBindJSON(&person); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Registry.CreatePerson(c.Request.Context(), &person); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

func (h *handlers) getPerson(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	person, err := h.deps.Registry.GetPerson(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

type statusRequest struct {
	Status models.EntryStatus `json:"status" binding:"required"`
}

func (h *handlers) setPersonStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Registry.SetPersonStatus(c.Request.Context(), id, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (h *handlers) createItem(c *gin.Context) {
	var item models.WatchlistItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Registry.CreateItem(c.Request.Context(), &item); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *handlers) getItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := h.deps.Registry.GetItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handlers) setItemStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Registry.SetItemStatus(c.Request.Context(), id, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// --- records ---

func (h *handlers) searchRecords(c *gin.Context) {
	page, pageSize := parsePage(c)
	filter := records.Filter{
		StoreCode: c.Query("store_code"),
		Location:  c.Query("location"),
		Page:      page,
		PageSize:  pageSize,
	}
	recs, err := h.deps.Records.Search(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs, "page": page})
}

func (h *handlers) getRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	record, err := h.deps.Records.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type saleDateRequest struct {
	SaleDate time.Time `json:"sale_date" binding:"required"`
}

func (h *handlers) setSaleDate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req saleDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Records.SetSaleDate(c.Request.Context(), id, req.SaleDate); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "sale_date": req.SaleDate})
}
