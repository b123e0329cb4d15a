package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt carries the fields printed on a payment receipt.
type Receipt struct {
	TransactionID string
	PaidAt        time.Time
	PayerName     string
	PayerEmail    string
	ProductInfo   string
	Method        string
	Amount        float64
	Currency      string
}

// ReceiptExporter renders payment receipts as PDF documents.
type ReceiptExporter struct {
	merchantName string
}

// NewReceiptExporter constructs a receipt exporter for the given merchant.
func NewReceiptExporter(merchantName string) *ReceiptExporter {
	if merchantName == "" {
		merchantName = "AgriSetu"
	}
	return &ReceiptExporter{merchantName: merchantName}
}

// Render produces the PDF bytes for a completed payment.
func (e *ReceiptExporter) Render(r Receipt) ([]byte, error) {
	if r.TransactionID == "" {
		return nil, fmt.Errorf("receipt requires a transaction id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, e.merchantName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Transaction ID", r.TransactionID},
		{"Date", r.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")},
		{"Paid by", fmt.Sprintf("%s <%s>", r.PayerName, r.PayerEmail)},
		{"Description", r.ProductInfo},
		{"Payment method", r.Method},
	}

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(135, 8, row[1], "1", "", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(45, 10, "Amount paid", "1", 0, "", false, 0, "")
	pdf.CellFormat(135, 10, fmt.Sprintf("%.2f %s", r.Amount, r.Currency), "1", 1, "R", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 6, "This receipt was generated automatically and is valid without a signature.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
