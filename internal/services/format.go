package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// formatTL renders an amount the Turkish way: 12.345,67 TL
func formatTL(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := b.String() + "," + frac + " TL"
	if neg {
		out = "-" + out
	}
	return out
}

// formatDate renders a date as 02.01.2006
func formatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

var channelLabels = map[string]string{
	"havale":   "Havale",
	"eft":      "EFT",
	"kart":     "Kredi Kartı",
	"nakit":    "Nakit",
	"otomatik": "Otomatik Ödeme",
}

func channelLabel(channel string) string {
	if label, ok := channelLabels[channel]; ok {
		return label
	}
	return channel
}

var loanTypeLabels = map[string]string{
	"ihtiyac": "İhtiyaç Kredisi",
	"konut":   "Konut Kredisi",
	"tasit":   "Taşıt Kredisi",
	"kobi":    "KOBİ Kredisi",
	"diger":   "Diğer",
}

func loanTypeLabel(loanType string) string {
	if label, ok := loanTypeLabels[loanType]; ok {
		return label
	}
	return loanType
}

var statusLabels = map[string]string{
	"pending": "Bekliyor",
	"paid":    "Ödendi",
	"overdue": "Gecikmiş",
	"active":  "Aktif",
	"closed":  "Kapandı",
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}
