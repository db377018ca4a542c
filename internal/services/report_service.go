package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/amortization"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/xuri/excelize/v2"
)

//go:embed templates/report/*.html
var reportTemplates embed.FS

type ReportService struct {
	loanRepo   repository.LoanRepository
	recordRepo repository.PaymentRecordRepository
	cal        calendar
}

func NewReportService(
	loanRepo repository.LoanRepository,
	recordRepo repository.PaymentRecordRepository,
	loc *time.Location,
) *ReportService {
	return &ReportService{
		loanRepo:   loanRepo,
		recordRepo: recordRepo,
		cal:        newCalendar(loc),
	}
}

func (s *ReportService) loanWithPlan(ctx context.Context, userID, loanID uint) (*models.Loan, error) {
	loan, err := s.loanRepo.FindByIDWithInstallments(ctx, loanID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return loan, nil
}

func (s *ReportService) filename(prefix string, loanID uint, ext string) string {
	return fmt.Sprintf("%s_%d_%s.%s", prefix, loanID, s.cal.today().Format(dateLayout), ext)
}

// PaymentPlanXLSX exports the installment plan of a loan as a workbook
func (s *ReportService) PaymentPlanXLSX(ctx context.Context, userID, loanID uint) ([]byte, string, error) {
	loan, err := s.loanWithPlan(ctx, userID, loanID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Ödeme Planı"
	_ = f.SetSheetName("Sheet1", sheet)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	moneyFmt := "#,##0.00"
	moneyStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("%s - %s", loan.BankName, loan.Name))
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(sheet, "A2", "Kredi Tutarı")
	_ = f.SetCellValue(sheet, "B2", loan.InitialAmount.InexactFloat64())
	_ = f.SetCellValue(sheet, "A3", "Yıllık Faiz (%)")
	_ = f.SetCellValue(sheet, "B3", loan.InterestRate.InexactFloat64())
	_ = f.SetCellValue(sheet, "A4", "Kalan Borç")
	_ = f.SetCellValue(sheet, "B4", loan.RemainingDebt.InexactFloat64())
	_ = f.SetCellStyle(sheet, "B2", "B4", moneyStyle)

	headers := []string{"Taksit No", "Vade Tarihi", "Anapara", "Faiz", "Taksit Tutarı", "Kalan Anapara", "Durum", "Ödeme Tarihi"}
	const headerRow = 6
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetCellStyle(sheet, "A6", "H6", headerStyle)

	row := headerRow
	for _, inst := range loan.Installments {
		row++
		paidOn := ""
		if inst.PaymentDate != nil {
			paidOn = formatDate(*inst.PaymentDate)
		}
		values := []any{
			inst.InstallmentNumber,
			formatDate(inst.DueDate),
			inst.PrincipalAmount.InexactFloat64(),
			inst.InterestAmount.InexactFloat64(),
			inst.TotalPayment.InexactFloat64(),
			inst.RemainingDebt.InexactFloat64(),
			statusLabel(inst.Status),
			paidOn,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetSheetRow(sheet, cell, &values)
	}
	if row > headerRow {
		from, _ := excelize.CoordinatesToCellName(3, headerRow+1)
		to, _ := excelize.CoordinatesToCellName(6, row)
		_ = f.SetCellStyle(sheet, from, to, moneyStyle)
	}
	_ = f.SetColWidth(sheet, "A", "H", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), s.filename("odeme_plani", loan.ID, "xlsx"), nil
}

// EarlyPayoffPDF renders an early payoff projection as a one page PDF
func (s *ReportService) EarlyPayoffPDF(ctx context.Context, userID, loanID uint, extra decimal.Decimal) ([]byte, string, error) {
	loan, err := s.loanRepo.FindByIDForUser(ctx, loanID, userID)
	if err != nil {
		return nil, "", notFound(err)
	}
	if loan.IsClosed() {
		return nil, "", fmt.Errorf("%w: kapanmış kredi için erken kapama hesaplanamaz", ErrInvalidState)
	}

	today := s.cal.today()
	p, err := amortization.ProjectEarlyPayoff(extra, loan.RemainingDebt, loan.RemainingInstallments, loan.InterestRate, today)
	if err != nil {
		return nil, "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Erken Kapama Hesabi")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 6, tr(fmt.Sprintf("%s - %s", loan.BankName, loan.Name)))
	pdf.Ln(6)
	pdf.Cell(40, 6, "Hesap tarihi: "+formatDate(today))
	pdf.Ln(10)

	rows := [][2]string{
		{"Ek odeme", formatTL(p.ExtraPayment)},
		{"Mevcut kalan borc", formatTL(p.CurrentRemainingDebt)},
		{"Yeni kalan borc", formatTL(p.NewRemainingDebt)},
		{"Tahmini faiz tasarrufu", formatTL(p.InterestSavings)},
		{"Yeni aylik taksit", formatTL(p.NewMonthlyPayment)},
		{"Kalan taksit sayisi", fmt.Sprintf("%d", p.RemainingInstallments)},
		{"Yillik faiz orani", "%" + p.AnnualInterestRate.StringFixed(2)},
		{"Tahmini bitis tarihi", formatDate(p.NewPayoffDate)},
	}
	pdf.SetFillColor(240, 240, 240)
	for i, r := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(80, 8, r[0], "1", 0, "L", i%2 == 0, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(60, 8, r[1], "1", 1, "R", i%2 == 0, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, "Bu hesap sabit faiz yaklasimiyla yapilmis bir tahmindir. Bankanizin uygulayacagi erken kapama tutari farkli olabilir.", "", "L", false)

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), s.filename("erken_kapama", loan.ID, "pdf"), nil
}

type statementRow struct {
	Number      int
	DueDate     string
	Principal   string
	Interest    string
	Total       string
	Remaining   string
	Status      string
	StatusClass string
	PaidOn      string
}

type statementRecord struct {
	Date    string
	Kind    string
	Amount  string
	Channel string
}

type statementData struct {
	LoanName        string
	BankName        string
	LoanType        string
	InitialAmount   string
	InterestRate    string
	TermMonths      int
	StartDate       string
	RemainingDebt   string
	RemainingCount  int
	PaymentProgress string
	Status          string
	TotalPaid       string
	Rows            []statementRow
	Records         []statementRecord
	GeneratedAt     string
}

// StatementPDF renders the loan statement (hesap özeti) HTML and converts it with wkhtmltopdf
func (s *ReportService) StatementPDF(ctx context.Context, userID, loanID uint) (*bytes.Buffer, string, error) {
	html, err := s.StatementHTML(ctx, userID, loanID)
	if err != nil {
		return nil, "", err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, "", fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.Grayscale.Set(false)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.Encoding.Set("utf-8")
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, "", fmt.Errorf("failed to create pdf: %w", err)
	}

	return pdfg.Buffer(), s.filename("hesap_ozeti", loanID, "pdf"), nil
}

// StatementHTML renders the statement document that StatementPDF converts
func (s *ReportService) StatementHTML(ctx context.Context, userID, loanID uint) ([]byte, error) {
	loan, err := s.loanWithPlan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}

	all := repository.NewListQuery()
	all.PerPage = 0
	records, _, err := s.recordRepo.FindByLoan(ctx, loan.ID, all)
	if err != nil {
		return nil, err
	}

	summary := amortization.Summarize(loan.InitialAmount, loan.Installments)
	data := statementData{
		LoanName:        loan.Name,
		BankName:        loan.BankName,
		LoanType:        loanTypeLabel(loan.LoanType),
		InitialAmount:   formatTL(loan.InitialAmount),
		InterestRate:    loan.InterestRate.StringFixed(2),
		TermMonths:      loan.TermMonths,
		StartDate:       formatDate(loan.StartDate),
		RemainingDebt:   formatTL(loan.RemainingDebt),
		RemainingCount:  loan.RemainingInstallments,
		PaymentProgress: loan.PaymentProgress.StringFixed(2),
		Status:          statusLabel(loan.Status),
		TotalPaid:       formatTL(summary.TotalPaid),
		GeneratedAt:     formatDate(s.cal.today()),
	}
	for _, inst := range loan.Installments {
		row := statementRow{
			Number:      inst.InstallmentNumber,
			DueDate:     formatDate(inst.DueDate),
			Principal:   formatTL(inst.PrincipalAmount),
			Interest:    formatTL(inst.InterestAmount),
			Total:       formatTL(inst.TotalPayment),
			Remaining:   formatTL(inst.RemainingDebt),
			Status:      statusLabel(inst.Status),
			StatusClass: inst.Status,
		}
		if inst.PaymentDate != nil {
			row.PaidOn = formatDate(*inst.PaymentDate)
		}
		data.Rows = append(data.Rows, row)
	}
	for _, rec := range records {
		data.Records = append(data.Records, statementRecord{
			Date:    formatDate(rec.PaymentDate),
			Kind:    kindLabel(rec.Kind),
			Amount:  formatTL(rec.Amount),
			Channel: channelLabel(rec.Channel),
		})
	}

	tmpl, err := template.ParseFS(reportTemplates, "templates/report/statement.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute statement template: %w", err)
	}
	return buf.Bytes(), nil
}

// PaymentHistoryCSV exports every payment record of a loan. Semicolon separated with a
// UTF-8 BOM so spreadsheet programs in Turkish locale open it correctly.
func (s *ReportService) PaymentHistoryCSV(ctx context.Context, userID, loanID uint) (*bytes.Buffer, string, error) {
	if _, err := s.loanRepo.FindByIDForUser(ctx, loanID, userID); err != nil {
		return nil, "", notFound(err)
	}

	all := repository.NewListQuery()
	all.PerPage = 0
	records, _, err := s.recordRepo.FindByLoan(ctx, loanID, all)
	if err != nil {
		return nil, "", err
	}

	b := &bytes.Buffer{}
	b.WriteString("\ufeff")
	w := csv.NewWriter(b)
	w.Comma = ';'

	header := []string{"Ödeme Tarihi", "İşlem No", "Taksit No", "Tür", "Tutar", "Anapara", "Faiz", "Kanal", "Not"}
	if err := w.Write(header); err != nil {
		return nil, "", err
	}

	for _, rec := range records {
		number := ""
		if rec.Installment != nil {
			number = fmt.Sprintf("%d", rec.Installment.InstallmentNumber)
		}
		note := ""
		if rec.Note != nil {
			note = *rec.Note
		}
		row := []string{
			rec.PaymentDate.Format(dateLayout),
			rec.OperationID,
			number,
			kindLabel(rec.Kind),
			rec.Amount.StringFixed(2),
			rec.PrincipalPortion.StringFixed(2),
			rec.InterestPortion.StringFixed(2),
			channelLabel(rec.Channel),
			note,
		}
		if err := w.Write(row); err != nil {
			return nil, "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return b, s.filename("odeme_gecmisi", loanID, "csv"), nil
}
