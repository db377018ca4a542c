package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/middleware"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves downloadable documents for a loan
type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func attachment(c *gin.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// @Summary Payment Plan
// @Description Download the installment plan as XLSX
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file "odeme_plani.xlsx"
// @Security BearerAuth
// @Router /loans/{loan_id}/plan.xlsx [get]
func (h *ReportHandler) PaymentPlanXLSX(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}
	data, filename, err := h.reportService.PaymentPlanXLSX(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, xlsxContentType, filename, data)
}

// @Summary Loan Statement
// @Description Download the loan statement as PDF
// @Tags Reports
// @Produce application/pdf
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file "hesap_ozeti.pdf"
// @Security BearerAuth
// @Router /loans/{loan_id}/statement.pdf [get]
func (h *ReportHandler) StatementPDF(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}
	buf, filename, err := h.reportService.StatementPDF(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "application/pdf", filename, buf.Bytes())
}

// @Summary Payment History CSV
// @Description Download the payment history as CSV
// @Tags Reports
// @Produce text/csv
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file "odeme_gecmisi.csv"
// @Security BearerAuth
// @Router /loans/{loan_id}/payments.csv [get]
func (h *ReportHandler) PaymentHistoryCSV(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}
	buf, filename, err := h.reportService.PaymentHistoryCSV(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "text/csv; charset=utf-8", filename, buf.Bytes())
}

// @Summary Early Payoff PDF
// @Description Download an early payoff projection as PDF
// @Tags Reports
// @Produce application/pdf
// @Param loan_id path int true "Loan ID"
// @Param amount query string true "Extra payment"
// @Success 200 {file} file "erken_kapama.pdf"
// @Security BearerAuth
// @Router /loans/{loan_id}/early_payoff.pdf [get]
func (h *ReportHandler) EarlyPayoffPDF(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "geçersiz tutar"})
		return
	}
	data, filename, err := h.reportService.EarlyPayoffPDF(c.Request.Context(), middleware.GetUserID(c), id, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "application/pdf", filename, data)
}

// NotificationHandler handles in-app notifications
type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// @Summary List Notifications
// @Description Get notifications for current user
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "read or unread"
// @Param loan_id query int false "Only notifications about this loan"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) Index(c *gin.Context) {
	userID := middleware.GetUserID(c)
	query := listQuery(c)
	query.Filters["status"] = c.Query("status")
	query.Filters["loan_id"] = c.Query("loan_id")

	notifications, total, err := h.notificationService.FindByUser(c.Request.Context(), userID, query)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notificationService.CountUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notifications[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"notifications": responses, "unread": unread, "pagination": pagination(query, total)})
}

// @Summary Mark Notification Read
// @Description Mark a notification as read
// @Tags Notifications
// @Produce json
// @Param notification_id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{notification_id}/read [post]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := pathID(c, "notification_id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkAsRead(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bildirim okundu olarak işaretlendi"})
}

// @Summary Mark All Notifications Read
// @Description Mark all notifications as read for current user
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/mark_all_as_read [post]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tüm bildirimler okundu olarak işaretlendi"})
}

// @Summary Delete Notification
// @Description Delete a notification
// @Tags Notifications
// @Produce json
// @Param notification_id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{notification_id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "notification_id")
	if !ok {
		return
	}
	if err := h.notificationService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bildirim silindi"})
}

// AuditHandler exposes the audit trail of the current user
type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Recent changes made by the current user
// @Tags Audits
// @Produce json
// @Param limit query int false "Limit" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, total, err := h.auditService.List(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs, "total": total})
}
