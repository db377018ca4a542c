package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/middleware"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/services"
)

type LoanHandler struct {
	loanService *services.LoanService
}

func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// @Summary List Loans
// @Description Lists the loans of the signed-in user
// @Tags Loans
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "active, overdue or closed"
// @Param loan_type query string false "ihtiyac, konut, tasit, kobi, diger"
// @Param search query string false "Name or bank"
// @Param sort query string false "field-direction, e.g. remaining_debt-desc"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) Index(c *gin.Context) {
	query := listQuery(c)
	query.Search = c.Query("search")
	query.Filters["status"] = c.Query("status")
	query.Filters["loan_type"] = c.Query("loan_type")

	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}

	loans, total, err := h.loanService.List(c.Request.Context(), middleware.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.LoanResponse, 0, len(loans))
	for i := range loans {
		responses = append(responses, loans[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"loans": responses, "pagination": pagination(query, total)})
}

// @Summary Create Loan
// @Description Creates a loan from a bank plan or generates an annuity plan
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body services.CreateLoanInput true "Loan"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req services.CreateLoanInput
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "geçersiz istek gövdesi: " + err.Error()})
		return
	}

	loan, err := h.loanService.Create(c.Request.Context(), middleware.GetUserID(c), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"loan": loan.ToResponse()})
}

// @Summary Get Loan
// @Description Returns a loan with its installment plan
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [get]
func (h *LoanHandler) Show(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	loan, err := h.loanService.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse()})
}

// @Summary Update Loan
// @Description Edits the descriptive fields of a loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body services.UpdateLoanInput true "Fields"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id} [patch]
func (h *LoanHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	var req services.UpdateLoanInput
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "geçersiz istek gövdesi: " + err.Error()})
		return
	}

	loan, err := h.loanService.Update(c.Request.Context(), middleware.GetUserID(c), id, req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse()})
}

// @Summary Delete Loan
// @Description Deletes a loan with its plan and payment history
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	if err := h.loanService.Delete(c.Request.Context(), middleware.GetUserID(c), id, c.ClientIP(), c.Request.UserAgent()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Kredi silindi"})
}

// @Summary List Installments
// @Description Returns the installment plan of a loan
// @Tags Loans
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id}/installments [get]
func (h *LoanHandler) Installments(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	plan, err := h.loanService.Installments(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.InstallmentResponse, 0, len(plan))
	for i := range plan {
		responses = append(responses, plan[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"installments": responses})
}

// @Summary Dashboard
// @Description Totals across the open loans of the signed-in user
// @Tags Loans
// @Produce json
// @Success 200 {object} services.Dashboard
// @Security BearerAuth
// @Router /dashboard [get]
func (h *LoanHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.loanService.Dashboard(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

type EarlyPayoffRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// @Summary Early Payoff Projection
// @Description Estimates the effect of an extra payment. Nothing is stored.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body EarlyPayoffRequest true "Extra payment"
// @Success 200 {object} amortization.Projection
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/early_payoff [post]
func (h *LoanHandler) EarlyPayoff(c *gin.Context) {
	id, ok := pathID(c, "loan_id")
	if !ok {
		return
	}

	var req EarlyPayoffRequest
	if err := BindNestedOrFlat(c, "early_payoff", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "geçersiz istek gövdesi: " + err.Error()})
		return
	}

	projection, err := h.loanService.ProjectEarlyPayoff(c.Request.Context(), middleware.GetUserID(c), id, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, projection)
}
