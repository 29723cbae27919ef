package handler

import (
	"net/http"
	"time"

	"bizledger/internal/middleware"
	"bizledger/internal/model"
	"bizledger/internal/service"
	"bizledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	agingService   service.AgingService
	invoiceService service.InvoiceService
}

func NewReportHandler(agingService service.AgingService, invoiceService service.InvoiceService) *ReportHandler {
	return &ReportHandler{
		agingService:   agingService,
		invoiceService: invoiceService,
	}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	readers := middleware.RequireRole(model.RoleAdmin, model.RoleAccountant, model.RoleViewer)

	reports := router.Group("/api/reports")
	reports.Use(readers)
	{
		reports.GET("/aging", h.GetAgingReport)
		reports.GET("/outstanding", h.GetOutstandingInvoices)
		reports.GET("/dashboard", h.GetDashboardStats)
	}
}

// GetAgingReport returns the accounts receivable aging report
// @Summary      Get aging report
// @Description  Buckets outstanding invoices by days past due, with per-client breakdown
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        as_of  query     string  false  "Reference date (YYYY-MM-DD, default today)"
// @Success      200    {object}  response.Response{data=service.AgingReport}
// @Failure      400    {object}  response.Response
// @Router       /api/reports/aging [get]
func (h *ReportHandler) GetAgingReport(c *gin.Context) {
	asOf := time.Now()
	if s := c.Query("as_of"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "as_of must be YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}

	report, err := h.agingService.GetAgingReport(c.Request.Context(), asOf)
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// GetOutstandingInvoices lists invoices with an open balance
// @Summary      Get outstanding invoices
// @Description  Lists sent, viewed and overdue invoices ordered by due date
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/outstanding [get]
func (h *ReportHandler) GetOutstandingInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.GetOutstandingInvoices(c.Request.Context())
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// GetDashboardStats returns headline invoicing figures
// @Summary      Get dashboard stats
// @Description  Returns invoice counts, outstanding and paid totals, and recent invoices
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.DashboardStats}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/dashboard [get]
func (h *ReportHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.invoiceService.GetDashboardStats(c.Request.Context())
	if err != nil {
		status := errStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
