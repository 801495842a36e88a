package render

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/backend-faktur/internal/billing"
	"github.com/noah-isme/backend-faktur/internal/document"
)

// Fixed A4 layout geometry in millimetres.
const (
	pageMargin  = 15.0
	contentW    = 180.0
	logoW       = 32.0
	logoH       = 16.0
	signatureW  = 40.0
	signatureH  = 18.0
	rowH        = 7.0
	summaryColW = 45.0
)

// pinnedTimestamp keeps the embedded PDF metadata constant so identical
// input yields identical bytes, as required for archival use.
var pinnedTimestamp = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// PDF renders finalized documents into fixed-layout PDF artifacts. Rendering
// is a pure transform of one Document; there is no shared mutable state, so
// a single PDF value is safe for concurrent use.
type PDF struct {
	Assets AssetFetcher
}

// Render produces the document artifact. Logo and signature are best-effort:
// a failed fetch leaves the slot empty rather than failing the render. A
// structurally invalid document fails with InvalidDocumentError, and a
// cancelled context aborts without producing an artifact.
func (p *PDF) Render(ctx context.Context, doc document.Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logo := p.fetchImage(ctx, doc.Issuer.LogoURL)
	signature := p.fetchImage(ctx, doc.Issuer.SignatureURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := doc.Summary()
	symbol := doc.Issuer.CurrencySymbol

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(pinnedTimestamp)
	pdf.SetModificationDate(pinnedTimestamp)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	p.header(pdf, doc, logo)
	p.titleBlock(pdf, doc)
	p.partiesBlock(pdf, doc)
	p.itemTable(pdf, summary, symbol)
	p.summaryRows(pdf, summary, symbol)
	p.bankBlock(pdf, doc)
	p.notesBlock(pdf, doc)
	p.signatureBlock(pdf, signature)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDF) fetchImage(ctx context.Context, url string) *asset {
	if url == "" || p.Assets == nil {
		return nil
	}
	data, imageType, err := p.Assets.Fetch(ctx, url)
	if err != nil || imageType == "" {
		return nil
	}
	return &asset{data: data, imageType: imageType}
}

type asset struct {
	data      []byte
	imageType string
}

func (p *PDF) placeImage(pdf *gofpdf.Fpdf, img *asset, name string, x, y, w, h float64) {
	opts := gofpdf.ImageOptions{ImageType: img.imageType, ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
	if pdf.Err() {
		// undecodable image data degrades to an empty slot
		pdf.ClearError()
		return
	}
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if pdf.Err() {
		pdf.ClearError()
	}
}

func (p *PDF) header(pdf *gofpdf.Fpdf, doc document.Document, logo *asset) {
	top := pdf.GetY()
	if logo != nil {
		p.placeImage(pdf, logo, "logo", pageMargin, top, logoW, logoH)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 7, doc.Issuer.Name, "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if doc.Issuer.Email != "" {
		pdf.CellFormat(contentW, 5, doc.Issuer.Email, "", 1, "R", false, 0, "")
	}
	if doc.Issuer.Phone != "" {
		pdf.CellFormat(contentW, 5, doc.Issuer.Phone, "", 1, "R", false, 0, "")
	}
	if bottom := top + logoH + 4; pdf.GetY() < bottom {
		pdf.SetY(bottom)
	}
	pdf.Ln(4)
}

func (p *PDF) titleBlock(pdf *gofpdf.Fpdf, doc document.Document) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(contentW/2, 9, doc.Title(), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(contentW/2, 9, doc.Number, "", 1, "R", false, 0, "")
	if doc.ExternalRef != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW, 5, "Ref: "+doc.ExternalRef, "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (p *PDF) partiesBlock(pdf *gofpdf.Fpdf, doc document.Document) {
	half := contentW / 2
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(half, 5, "Issued To", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(half, 5, doc.Customer.Name, "", 1, "L", false, 0, "")
	if doc.Customer.Address != "" {
		pdf.MultiCell(half, 5, doc.Customer.Address, "", "L", false)
	}
	if doc.Customer.Email != "" {
		pdf.CellFormat(half, 5, doc.Customer.Email, "", 1, "L", false, 0, "")
	}
	if doc.Customer.Phone != "" {
		pdf.CellFormat(half, 5, doc.Customer.Phone, "", 1, "L", false, 0, "")
	}
	leftBottom := pdf.GetY()

	pdf.SetY(top)
	pdf.SetX(pageMargin + half)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(half, 5, "Issued: "+doc.IssuedAt.Format("02 Jan 2006"), "", 2, "R", false, 0, "")
	if doc.DueAt != nil {
		pdf.SetX(pageMargin + half)
		pdf.CellFormat(half, 5, "Due: "+doc.DueAt.Format("02 Jan 2006"), "", 2, "R", false, 0, "")
	}
	pdf.SetX(pageMargin + half)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(half, 5, "Status: "+string(doc.Status), "", 1, "R", false, 0, "")

	if pdf.GetY() < leftBottom {
		pdf.SetY(leftBottom)
	}
	pdf.Ln(6)
}

func (p *PDF) itemTable(pdf *gofpdf.Fpdf, summary billing.Summary, symbol string) {
	descW := contentW - summaryColW

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(descW, rowH, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(summaryColW, rowH, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range summary.LineTotals {
		pdf.CellFormat(descW, rowH, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(summaryColW, rowH, billing.FormatMoney(line.Total, symbol), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(2)
}

func (p *PDF) summaryRows(pdf *gofpdf.Fpdf, summary billing.Summary, symbol string) {
	labelX := pageMargin + contentW - 2*summaryColW

	row := func(label, value string, bold, fill bool) {
		pdf.SetX(labelX)
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(summaryColW, rowH, label, "", 0, "L", fill, 0, "")
		pdf.CellFormat(summaryColW, rowH, value, "", 1, "R", fill, 0, "")
	}

	row("Sub Total", billing.FormatMoney(summary.SubTotal, symbol), false, false)
	if summary.DiscountAmount > 0 {
		label := fmt.Sprintf("Discount (%s%%)", trimPercent(summary.DiscountPercentage))
		row(label, "-"+billing.FormatMoney(summary.DiscountAmount, symbol), false, false)
	}
	row(fmt.Sprintf("Tax (%s%%)", trimPercent(summary.TaxPercentage)), billing.FormatMoney(summary.TaxAmount, symbol), false, false)
	row("Grand Total", billing.FormatMoney(summary.GrandTotal, symbol), true, false)
	pdf.SetFillColor(225, 235, 245)
	row("Amount Paid", billing.FormatMoney(summary.AmountPaid, symbol), true, true)
	row("Balance Due", billing.FormatMoney(summary.BalanceDue, symbol), true, false)
	pdf.Ln(6)
}

func (p *PDF) bankBlock(pdf *gofpdf.Fpdf, doc document.Document) {
	if doc.Bank.BankName == "" && doc.Bank.AccountName == "" && doc.Bank.AccountNumber == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 5, "Payment Details", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if doc.Bank.BankName != "" {
		pdf.CellFormat(contentW, 5, "Bank: "+doc.Bank.BankName, "", 1, "L", false, 0, "")
	}
	if doc.Bank.AccountName != "" {
		pdf.CellFormat(contentW, 5, "Account Name: "+doc.Bank.AccountName, "", 1, "L", false, 0, "")
	}
	if doc.Bank.AccountNumber != "" {
		pdf.CellFormat(contentW, 5, "Account Number: "+doc.Bank.AccountNumber, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (p *PDF) notesBlock(pdf *gofpdf.Fpdf, doc document.Document) {
	if doc.Notes == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 5, "Notes", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(contentW, 5, doc.Notes, "", "L", false)
	pdf.Ln(4)
}

func (p *PDF) signatureBlock(pdf *gofpdf.Fpdf, signature *asset) {
	if signature == nil {
		return
	}
	x := pageMargin + contentW - signatureW
	p.placeImage(pdf, signature, "signature", x, pdf.GetY(), signatureW, signatureH)
	pdf.SetY(pdf.GetY() + signatureH + 2)
	pdf.SetX(x)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(signatureW, 4, "Authorised Signature", "T", 1, "C", false, 0, "")
}

func trimPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
