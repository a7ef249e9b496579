// Package invoice renders GST tax invoices for orders as PDF documents.
package invoice

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vasiliy-maslov/storefront-orders/internal/config"
	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	"github.com/vasiliy-maslov/storefront-orders/internal/tax"
)

const (
	margin     = 15.0
	lineHeight = 5.0
	rowPadding = 2.0
	logoWidth  = 30.0
	fontFamily = "Helvetica"
)

type column struct {
	title string
	width float64
	align string
}

// Widths add up to the printable A4 width.
var columns = []column{
	{title: "Product", width: 52, align: "L"},
	{title: "Size / Color", width: 26, align: "L"},
	{title: "Qty", width: 12, align: "C"},
	{title: "Unit Price", width: 22, align: "R"},
	{title: "GST %", width: 14, align: "C"},
	{title: "GST", width: 24, align: "R"},
	{title: "Total", width: 30, align: "R"},
}

// Renderer prints invoices with the configured business identity.
type Renderer struct {
	branding config.InvoiceConfig
	printer  *message.Printer
}

func NewRenderer(branding config.InvoiceConfig) *Renderer {
	return &Renderer{
		branding: branding,
		printer:  message.NewPrinter(language.English),
	}
}

// Render returns the PDF bytes for src. Authorization is the caller's job.
func (r *Renderer) Render(src order.InvoiceSource) ([]byte, error) {
	pdf, err := r.build(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice: failed to write pdf for order %s: %w", src.Order.Number, err)
	}

	return buf.Bytes(), nil
}

// FormatAmount prints an amount rounded to the whole currency unit, with thousands separators and
// the rupee prefix.
func (r *Renderer) FormatAmount(amount decimal.Decimal) string {
	return "Rs. " + r.printer.Sprintf("%.2f", tax.Round(amount).InexactFloat64())
}

func (r *Renderer) build(src order.InvoiceSource) (*fpdf.Fpdf, error) {
	if src.Order == nil {
		return nil, fmt.Errorf("invoice: order is required")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle("Invoice "+src.Order.Number, true)
	pdf.SetCreator(r.branding.BusinessName, true)

	d := &document{
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		renderer: r,
	}

	pdf.AddPage()
	d.header()
	d.parties(src)
	d.itemTable(src.Order.Items)
	d.summary(src.Order)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("invoice: failed to render order %s: %w", src.Order.Number, err)
	}

	return pdf, nil
}

type document struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	renderer *Renderer
}

func (d *document) text(s string) string {
	return d.tr(s)
}

func (d *document) pageWidth() float64 {
	w, _ := d.pdf.GetPageSize()
	return w
}

func (d *document) printableWidth() float64 {
	return d.pageWidth() - 2*margin
}

// bottom is the lowest y a row may reach.
func (d *document) bottom() float64 {
	_, h := d.pdf.GetPageSize()
	return h - margin
}

// header prints the logo, or the business name when no usable logo is configured.
func (d *document) header() {
	if d.logo() {
		return
	}

	d.pdf.SetFont(fontFamily, "B", 18)
	d.pdf.CellFormat(0, 10, d.text(d.renderer.branding.BusinessName), "", 1, "C", false, 0, "")
	d.pdf.Ln(2)
}

func (d *document) logo() bool {
	path := strings.TrimSpace(d.renderer.branding.LogoPath)
	if path == "" {
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("logo_path", path).Msg("invoice: logo unavailable, using text header")
		return false
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		log.Warn().Err(err).Str("logo_path", path).Msg("invoice: logo is not a decodable image, using text header")
		return false
	}

	imageType := "PNG"
	if format == "jpeg" {
		imageType = "JPG"
	}

	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	d.pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if d.pdf.Ok() {
		height := logoWidth * float64(cfg.Height) / float64(cfg.Width)
		x := (d.pageWidth() - logoWidth) / 2
		d.pdf.ImageOptions("logo", x, margin, logoWidth, height, false, opts, 0, "")
		if d.pdf.Ok() {
			d.pdf.SetY(margin + height + 4)
			return true
		}
	}

	log.Warn().Err(d.pdf.Error()).Str("logo_path", path).Msg("invoice: failed to embed logo, using text header")
	d.pdf.ClearError()
	return false
}

// parties prints the seller block on the left, invoice metadata on the right and the billing block
// below them.
func (d *document) parties(src order.InvoiceSource) {
	o := src.Order
	b := d.renderer.branding
	top := d.pdf.GetY()
	half := d.printableWidth() / 2

	d.pdf.SetFont(fontFamily, "B", 12)
	d.pdf.CellFormat(half, 6, d.text(b.BusinessName), "", 2, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 9)
	seller := append([]string{}, b.AddressLines...)
	if b.GSTIN != "" {
		seller = append(seller, "GSTIN: "+b.GSTIN)
	}
	if b.Email != "" {
		seller = append(seller, b.Email)
	}
	if b.Phone != "" {
		seller = append(seller, b.Phone)
	}
	for _, l := range seller {
		d.pdf.CellFormat(half, lineHeight, d.text(l), "", 2, "L", false, 0, "")
	}
	sellerBottom := d.pdf.GetY()

	d.pdf.SetXY(margin+half, top)
	d.pdf.SetFont(fontFamily, "B", 16)
	d.pdf.CellFormat(half, 8, "TAX INVOICE", "", 2, "R", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 9)
	meta := []string{
		"Invoice No: " + o.Number,
		"Date: " + o.CreatedAt.Format("02 Jan 2006"),
		"Status: " + strings.ToUpper(o.Status.String()),
		"Payment: " + string(o.Gateway),
	}
	for _, l := range meta {
		d.pdf.CellFormat(half, lineHeight, d.text(l), "", 2, "R", false, 0, "")
	}

	d.pdf.SetXY(margin, max(sellerBottom, d.pdf.GetY())+6)

	d.pdf.SetFont(fontFamily, "B", 10)
	d.pdf.CellFormat(0, 6, "Bill To", "", 1, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 9)
	for _, l := range billingLines(o, src.Billing) {
		d.pdf.CellFormat(0, lineHeight, d.text(l), "", 1, "L", false, 0, "")
	}
	d.pdf.Ln(4)
}

func billingLines(o *order.Order, addr *customer.Address) []string {
	if addr == nil {
		return compact(o.CustomerName, o.Email)
	}

	name := strings.TrimSpace(addr.FirstName + " " + addr.LastName)
	if name == "" {
		name = o.CustomerName
	}
	cityLine := strings.Join(compact(addr.City, addr.Province, addr.Zip), ", ")

	return compact(name, addr.Address1, addr.Address2, cityLine, addr.CountryCode, addr.Phone, o.Email)
}

func compact(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (d *document) tableHeader() {
	d.pdf.SetFont(fontFamily, "B", 9)
	d.pdf.SetFillColor(235, 235, 235)
	for _, c := range columns {
		d.pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetFont(fontFamily, "", 9)
}

// wrap breaks already translated single-byte text into lines no wider than width, splitting words
// that cannot fit on a line of their own.
func (d *document) wrap(s string, width float64) []string {
	var lines []string
	var current string

	for _, word := range strings.Fields(s) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if d.pdf.GetStringWidth(candidate) <= width {
			current = candidate
			continue
		}

		if current != "" {
			lines = append(lines, current)
		}
		for len(word) > 1 && d.pdf.GetStringWidth(word) > width {
			n := len(word) - 1
			for n > 1 && d.pdf.GetStringWidth(word[:n]) > width {
				n--
			}
			lines = append(lines, word[:n])
			word = word[n:]
		}
		current = word
	}

	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (d *document) itemTable(items []order.Item) {
	d.tableHeader()

	for _, item := range items {
		nameLines := d.wrap(d.text(item.ProductName), columns[0].width-2)
		if len(nameLines) == 0 {
			nameLines = []string{""}
		}
		rowHeight := float64(len(nameLines))*lineHeight + rowPadding

		if d.pdf.GetY()+rowHeight > d.bottom() {
			d.pdf.AddPage()
			d.pdf.SetY(margin)
			d.tableHeader()
		}

		x, y := d.pdf.GetX(), d.pdf.GetY()

		d.pdf.Rect(x, y, columns[0].width, rowHeight, "D")
		for i, l := range nameLines {
			d.pdf.SetXY(x+1, y+rowPadding/2+float64(i)*lineHeight)
			d.pdf.CellFormat(columns[0].width-2, lineHeight, l, "", 0, "L", false, 0, "")
		}
		d.pdf.SetXY(x+columns[0].width, y)

		for i, c := range d.lineCells(item) {
			col := columns[i+1]
			d.pdf.CellFormat(col.width, rowHeight, c, "1", 0, col.align, false, 0, "")
		}

		d.pdf.SetXY(x, y+rowHeight)
	}
}

// lineCells returns the printed cells after the product name. GST is derived from the stored unit
// price with the same split used at order creation.
func (d *document) lineCells(item order.Item) []string {
	split := tax.Split(item.UnitPrice, item.Quantity)
	return []string{
		d.text(item.Size + " / " + item.Color),
		fmt.Sprintf("%d", item.Quantity),
		d.renderer.FormatAmount(item.UnitPrice),
		fmt.Sprintf("%d%%", tax.Percent(split.Rate)),
		d.renderer.FormatAmount(split.Tax),
		d.renderer.FormatAmount(item.TotalPrice),
	}
}

func (d *document) summary(o *order.Order) {
	type row struct {
		label  string
		amount decimal.Decimal
		bold   bool
	}

	rows := []row{
		{label: "Subtotal (excl. GST)", amount: o.Subtotal},
		{label: "GST", amount: o.TaxAmount},
	}
	if !o.ShippingCost.IsZero() {
		rows = append(rows, row{label: "Shipping", amount: o.ShippingCost})
	}
	if !o.CODFee.IsZero() {
		rows = append(rows, row{label: "COD Fee", amount: o.CODFee})
	}
	rows = append(rows, row{label: "Total", amount: o.TotalAmount, bold: true})

	needed := float64(len(rows))*6 + 16
	if d.pdf.GetY()+needed > d.bottom() {
		d.pdf.AddPage()
		d.pdf.SetY(margin)
	}

	d.pdf.Ln(4)
	labelWidth := 40.0
	amountWidth := 30.0
	x := margin + d.printableWidth() - labelWidth - amountWidth

	for _, r := range rows {
		style := ""
		if r.bold {
			style = "B"
		}
		d.pdf.SetFont(fontFamily, style, 10)
		d.pdf.SetX(x)
		d.pdf.CellFormat(labelWidth, 6, r.label, "", 0, "L", false, 0, "")
		d.pdf.CellFormat(amountWidth, 6, d.renderer.FormatAmount(r.amount), "", 1, "R", false, 0, "")
	}

	d.pdf.Ln(6)
	d.pdf.SetFont(fontFamily, "I", 8)
	d.pdf.CellFormat(0, 5, "Prices are inclusive of GST. This is a computer generated invoice.", "", 1, "C", false, 0, "")
}
