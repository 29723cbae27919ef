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

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	ledgerService  service.LedgerService
}

func NewInvoiceHandler(invoiceService service.InvoiceService, ledgerService service.LedgerService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		ledgerService:  ledgerService,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	writers := middleware.RequireRole(model.RoleAdmin, model.RoleAccountant)
	readers := middleware.RequireRole(model.RoleAdmin, model.RoleAccountant, model.RoleViewer)

	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", writers, h.CreateInvoice)
		invoices.GET("", readers, h.ListInvoices)
		invoices.GET("/:id", readers, h.GetInvoice)
		invoices.PUT("/:id", writers, h.UpdateInvoice)
		invoices.DELETE("/:id", writers, h.DeleteInvoice)
		invoices.POST("/:id/send", writers, h.SendInvoice)
		invoices.PUT("/:id/viewed", writers, h.MarkViewed)
		invoices.PUT("/:id/cancel", writers, h.CancelInvoice)
		invoices.POST("/:id/duplicate", writers, h.DuplicateInvoice)
		invoices.POST("/:id/payments", writers, h.RecordPayment)
	}
}

// CreateInvoice creates a new draft invoice
// @Summary      Create invoice
// @Description  Creates a new draft invoice with line items; totals are computed server-side
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(actorContext(c), req)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices
// @Summary      List invoices
// @Description  Retrieves a paginated list of invoices, optionally filtered by status, client or invoice number
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "Filter by status (draft, sent, viewed, paid, overdue, cancelled)"
// @Param        client_id   query     string  false  "Filter by client ID"
// @Param        invoice_no  query     string  false  "Partial match on invoice number"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      500         {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.InvoiceListFilter{
		Status:    c.Query("status"),
		ClientID:  c.Query("client_id"),
		InvoiceNo: c.Query("invoice_no"),
		Page:      p.Page,
		Limit:     p.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap("invoices", invoices, total)))
}

// GetInvoice returns a single invoice with its ledger history
// @Summary      Get invoice
// @Description  Retrieves an invoice by ID including line items, payments and credit applications
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateInvoice updates an invoice
// @Summary      Update invoice
// @Description  Updates invoice fields. Financial fields are only editable while the invoice is a draft.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Invoice ID"
// @Param        payload  body      service.UpdateInvoiceRequest  true  "Update Invoice Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(actorContext(c), c.Param("id"), req)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice deletes an invoice
// @Summary      Delete invoice
// @Description  Deletes an invoice. Paid invoices cannot be deleted.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(actorContext(c), c.Param("id")); err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "invoice deleted"}))
}

type sendInvoiceRequest struct {
	Recipient string `json:"recipient"`
}

// SendInvoice marks a draft invoice as sent
// @Summary      Send invoice
// @Description  Transitions a draft invoice to sent, stamping the sent date
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string              true   "Invoice ID"
// @Param        payload  body      sendInvoiceRequest  false  "Optional recipient override"
// @Success      200      {object}  response.Response{data=service.SendInvoiceResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/invoices/{id}/send [post]
func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	var req sendInvoiceRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	result, err := h.invoiceService.SendInvoice(actorContext(c), c.Param("id"), req.Recipient)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// MarkViewed marks a sent invoice as viewed by the client
// @Summary      Mark invoice viewed
// @Description  Transitions a sent invoice to viewed. Already-viewed invoices are a no-op.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/viewed [put]
func (h *InvoiceHandler) MarkViewed(c *gin.Context) {
	invoice, err := h.invoiceService.MarkViewed(actorContext(c), c.Param("id"))
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// CancelInvoice cancels an invoice
// @Summary      Cancel invoice
// @Description  Cancels an invoice. Paid invoices cannot be cancelled.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/cancel [put]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.CancelInvoice(actorContext(c), c.Param("id"))
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DuplicateInvoice copies an invoice into a fresh draft
// @Summary      Duplicate invoice
// @Description  Creates a new draft invoice copying the source's line items and terms, with a clean ledger
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Source Invoice ID"
// @Success      201  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/duplicate [post]
func (h *InvoiceHandler) DuplicateInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.DuplicateInvoice(actorContext(c), c.Param("id"))
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// RecordPayment records a payment against an invoice
// @Summary      Record payment
// @Description  Records a payment against an invoice; rejects overpayment and updates the balance atomically
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.RecordPaymentRequest  true  "Record Payment Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.ledgerService.RecordPayment(actorContext(c), c.Param("id"), req)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}
