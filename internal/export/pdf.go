package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/service"
)

// Renderer turns a consolidated shopping list into a downloadable document.
// The services never see the document format.
type Renderer interface {
	Render(title string, lines []service.ConsolidatedLine) ([]byte, error)
	ContentType() string
	FileName() string
}

type PDFRenderer struct{}

func NewPDFRenderer() Renderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) ContentType() string {
	return "application/pdf"
}

func (r *PDFRenderer) FileName() string {
	return "shopping_cart.pdf"
}

func (r *PDFRenderer) Render(title string, lines []service.ConsolidatedLine) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetFillColor(51, 102, 153)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(0, 12, title, "", 1, "C", true, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)
	for _, line := range lines {
		label := fmt.Sprintf("%s (%s) - %d", line.Name, line.MeasurementUnit, line.TotalAmount)
		pdf.CellFormat(0, 8, label, "", 1, "L", false, 0, "")
	}

	buf := bytes.Buffer{}
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render pdf")
	}
	return buf.Bytes(), nil
}
