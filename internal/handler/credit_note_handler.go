package handler

import (
	"net/http"

	"bizledger/internal/middleware"
	"bizledger/internal/model"
	"bizledger/internal/service"
	"bizledger/pkg/pagination"
	"bizledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreditNoteHandler struct {
	creditNoteService service.CreditNoteService
	ledgerService     service.LedgerService
}

func NewCreditNoteHandler(creditNoteService service.CreditNoteService, ledgerService service.LedgerService) *CreditNoteHandler {
	return &CreditNoteHandler{
		creditNoteService: creditNoteService,
		ledgerService:     ledgerService,
	}
}

func (h *CreditNoteHandler) RegisterRoutes(router *gin.RouterGroup) {
	writers := middleware.RequireRole(model.RoleAdmin, model.RoleAccountant)
	readers := middleware.RequireRole(model.RoleAdmin, model.RoleAccountant, model.RoleViewer)

	notes := router.Group("/api/credit-notes")
	{
		notes.POST("", writers, h.CreateCreditNote)
		notes.GET("", readers, h.ListCreditNotes)
		notes.GET("/available", readers, h.AvailableForClient)
		notes.GET("/:id", readers, h.GetCreditNote)
		notes.PUT("/:id/void", writers, h.VoidCreditNote)
		notes.POST("/:id/apply", writers, h.ApplyCreditNote)
	}
}

// CreateCreditNote issues a new credit note
// @Summary      Create credit note
// @Description  Issues a credit note for a client, optionally tied to an originating invoice
// @Tags         credit-notes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCreditNoteRequest  true  "Create Credit Note Payload"
// @Success      201      {object}  response.Response{data=service.CreditNoteResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/credit-notes [post]
func (h *CreditNoteHandler) CreateCreditNote(c *gin.Context) {
	var req service.CreateCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	note, err := h.creditNoteService.CreateCreditNote(actorContext(c), req)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, note))
}

// ListCreditNotes returns a paginated list of credit notes
// @Summary      List credit notes
// @Description  Retrieves a paginated list of credit notes, newest first
// @Tags         credit-notes
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/credit-notes [get]
func (h *CreditNoteHandler) ListCreditNotes(c *gin.Context) {
	p := pagination.Parse(c)

	notes, total, err := h.creditNoteService.ListCreditNotes(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap("credit_notes", notes, total)))
}

// AvailableForClient lists a client's credit notes with remaining balance
// @Summary      List available credit notes
// @Description  Returns the client's credit notes that still carry a remaining balance
// @Tags         credit-notes
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query     string  true  "Client ID"
// @Success      200        {object}  response.Response{data=[]service.CreditNoteResponse}
// @Failure      400        {object}  response.Response
// @Router       /api/credit-notes/available [get]
func (h *CreditNoteHandler) AvailableForClient(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "client_id query parameter is required"))
		return
	}

	notes, err := h.creditNoteService.AvailableForClient(c.Request.Context(), clientID)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, notes))
}

// GetCreditNote returns a single credit note
// @Summary      Get credit note
// @Description  Retrieves a credit note by ID
// @Tags         credit-notes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Credit Note ID"
// @Success      200  {object}  response.Response{data=service.CreditNoteResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/credit-notes/{id} [get]
func (h *CreditNoteHandler) GetCreditNote(c *gin.Context) {
	note, err := h.creditNoteService.GetCreditNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, note))
}

// VoidCreditNote cancels an unapplied credit note
// @Summary      Void credit note
// @Description  Cancels a credit note. Notes with applied amounts cannot be voided.
// @Tags         credit-notes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Credit Note ID"
// @Success      200  {object}  response.Response{data=service.CreditNoteResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/credit-notes/{id}/void [put]
func (h *CreditNoteHandler) VoidCreditNote(c *gin.Context) {
	note, err := h.creditNoteService.VoidCreditNote(actorContext(c), c.Param("id"))
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, note))
}

type applyCreditRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// ApplyCreditNote applies a credit note against an invoice balance
// @Summary      Apply credit note
// @Description  Applies part of a credit note's remaining balance to an invoice, atomically updating both
// @Tags         credit-notes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Credit Note ID"
// @Param        payload  body      applyCreditRequest  true  "Apply Credit Payload"
// @Success      200      {object}  response.Response{data=service.ApplyCreditResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/credit-notes/{id}/apply [post]
func (h *CreditNoteHandler) ApplyCreditNote(c *gin.Context) {
	var req applyCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.ledgerService.ApplyCreditNote(actorContext(c), c.Param("id"), req.InvoiceID, req.Amount)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
