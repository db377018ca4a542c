package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/kredim-api/internal/middleware"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/services"
	"github.com/sjperalta/kredim-api/internal/storage"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// @Summary Pay
// @Description Applies a payment to the oldest outstanding installments of a loan
// @Tags Payments
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body services.PayInput true "Payment"
// @Success 201 {object} services.PaymentResult
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id}/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	loanID, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	var req services.PayInput
	if err := BindNestedOrFlat(c, "payment", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "geçersiz istek gövdesi: " + err.Error()})
		return
	}

	result, err := h.paymentService.Pay(c.Request.Context(), middleware.GetUserID(c), loanID, req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if len(result.Records) == 0 {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// @Summary Payment History
// @Description Lists the payment records of a loan, newest first
// @Tags Payments
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param kind query string false "full, partial or aggregate"
// @Param channel query string false "havale, eft, kart, nakit, otomatik"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id}/payments [get]
func (h *PaymentHandler) Index(c *gin.Context) {
	loanID, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	query := listQuery(c)
	query.Filters["kind"] = c.Query("kind")
	query.Filters["channel"] = c.Query("channel")

	records, total, err := h.paymentService.ListRecords(c.Request.Context(), middleware.GetUserID(c), loanID, query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.PaymentRecordResponse, 0, len(records))
	for i := range records {
		responses = append(responses, records[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"payments": responses, "pagination": pagination(query, total)})
}

// @Summary Delete Payment
// @Description Deletes one payment record and restores the installments it settled
// @Tags Payments
// @Produce json
// @Param payment_id path int true "Payment record ID"
// @Success 200 {object} services.ReversalResult
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{payment_id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}

	result, err := h.paymentService.DeleteRecord(c.Request.Context(), middleware.GetUserID(c), id, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Reverse Operation
// @Description Reverses every record of one payment operation
// @Tags Payments
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param operation_id path string true "Operation ID"
// @Success 200 {object} services.ReversalResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/operations/{operation_id} [delete]
func (h *PaymentHandler) ReverseOperation(c *gin.Context) {
	loanID, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	result, err := h.paymentService.ReverseOperation(c.Request.Context(), middleware.GetUserID(c), loanID,
		c.Param("operation_id"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Upload Receipt
// @Description Attaches a bank receipt (PDF, PNG or JPEG) to a payment record
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param payment_id path int true "Payment record ID"
// @Param receipt formData file true "Receipt file"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /payments/{payment_id}/receipt [post]
func (h *PaymentHandler) UploadReceipt(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}

	if c.Request.ContentLength > storage.MaxFileSize() {
		respondError(c, storage.ErrFileTooLarge)
		return
	}

	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dekont dosyası zorunludur"})
		return
	}
	defer file.Close()

	record, err := h.paymentService.UploadReceipt(c.Request.Context(), middleware.GetUserID(c), id, file, header.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": record.ToResponse(), "message": "Dekont yüklendi"})
}

// @Summary Download Receipt
// @Description Downloads the receipt of a payment record
// @Tags Payments
// @Produce application/octet-stream
// @Param payment_id path int true "Payment record ID"
// @Success 200 {file} file "receipt"
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{payment_id}/receipt [get]
func (h *PaymentHandler) DownloadReceipt(c *gin.Context) {
	id, ok := pathID(c, "payment_id")
	if !ok {
		return
	}

	rc, contentType, filename, err := h.paymentService.DownloadReceipt(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}
