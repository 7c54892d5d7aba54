package services

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"facilityops/internal/models"

	"github.com/jung-kurt/gofpdf"
)

const (
	reportBrand  = "FacilityOps"
	reportMargin = 15.0
	lineHeight   = 5.0
)

type SectionKind int

const (
	SectionFields SectionKind = iota
	SectionChecklist
	SectionHazards
	SectionText
)

type ReportField struct {
	Label string
	Value string
}

// ReportSection is one block of the work order report. Sections are rendered
// in slice order; Page starts a new page when it changes.
type ReportSection struct {
	Page   int
	Title  string
	Kind   SectionKind
	Fields []ReportField
	Items  []models.AssessmentItem
	Text   string
}

// ReportColumn is one column of a tabular report. Widths are relative and
// scaled to the printable width.
type ReportColumn struct {
	Header string
	Width  float64
}

type ReportService interface {
	RenderWorkOrder(wo *models.WorkOrder) ([]byte, error)
	RenderTabular(title string, columns []ReportColumn, rows [][]string, generatedAt time.Time) ([]byte, error)
}

type reportService struct{}

func NewReportService() ReportService {
	return &reportService{}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WorkOrderSections lays out the two page work order report.
func WorkOrderSections(wo *models.WorkOrder) []ReportSection {
	notes := wo.Notes
	if notes == "" {
		notes = "No notes recorded."
	}
	return []ReportSection{
		{
			Page:  1,
			Title: "Work Order Details",
			Kind:  SectionFields,
			Fields: []ReportField{
				{"Description", orDash(wo.Description)},
				{"Customer", orDash(wo.CustomerName)},
				{"Customer Contact", orDash(wo.CustomerContact)},
				{"Location", orDash(wo.Location)},
				{"Status", string(wo.Status)},
				{"Priority", string(wo.Priority)},
				{"Assigned To", orDash(wo.AssignedTo)},
				{"Due Date", orDash(wo.DueDate.String())},
			},
		},
		{
			Page:  1,
			Title: "Survey Information",
			Kind:  SectionFields,
			Fields: []ReportField{
				{"Date of Survey", orDash(wo.DateOfSurvey.String())},
				{"Surveyors", orDash(wo.Surveyors)},
				{"Confined Space Name/ID", orDash(wo.ConfinedSpaceName)},
				{"Building", orDash(wo.Building)},
				{"Location Description", orDash(wo.LocationDescription)},
				{"Confined Space Description", orDash(wo.ConfinedSpaceDescription)},
				{"Number of Entry Points", strconv.Itoa(wo.NumberOfEntryPoints)},
			},
		},
		{
			Page:  1,
			Title: "Confined Space Characteristics",
			Kind:  SectionChecklist,
			Items: wo.Characteristics(),
		},
		{
			Page:  2,
			Title: "Permit-Required Confined Space Hazards",
			Kind:  SectionHazards,
			Items: wo.Hazards(),
		},
		{
			Page:  2,
			Title: "Safety Equipment",
			Kind:  SectionHazards,
			Items: wo.Safety(),
		},
		{
			Page:  2,
			Title: "Notes",
			Kind:  SectionText,
			Text:  notes,
		},
	}
}

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newPDFWriter(orientation string, stamp time.Time) *pdfWriter {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(reportMargin, reportMargin, reportMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetCreator(reportBrand, true)
	pdf.SetProducer(reportBrand, true)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.AliasNbPages("{nb}")
	return &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (w *pdfWriter) printableWidth() float64 {
	pageW, _ := w.pdf.GetPageSize()
	left, _, right, _ := w.pdf.GetMargins()
	return pageW - left - right
}

func (w *pdfWriter) footer(left string) {
	w.pdf.SetFooterFunc(func() {
		half := w.printableWidth() / 2
		w.pdf.SetY(-15)
		w.pdf.SetFont("Arial", "I", 8)
		w.pdf.SetTextColor(128, 128, 128)
		w.pdf.CellFormat(half, 10, w.tr(left), "", 0, "L", false, 0, "")
		w.pdf.CellFormat(half, 10, fmt.Sprintf("Page %d of {nb}", w.pdf.PageNo()), "", 0, "R", false, 0, "")
		w.pdf.SetTextColor(33, 37, 41)
	})
}

func (w *pdfWriter) sectionTitle(title string) {
	w.pdf.Ln(3)
	w.pdf.SetFont("Arial", "B", 12)
	w.pdf.SetFillColor(230, 236, 245)
	w.pdf.CellFormat(0, 8, w.tr(title), "", 1, "L", true, 0, "")
	w.pdf.Ln(2)
}

// row draws one table row whose height fits the tallest wrapped cell,
// breaking the page first when the row would not fit.
func (w *pdfWriter) row(widths []float64, aligns []string, cells []string, fill bool) {
	lines := 1
	for i, c := range cells {
		if n := len(w.pdf.SplitLines([]byte(w.tr(c)), widths[i]-2)); n > lines {
			lines = n
		}
	}
	h := float64(lines) * lineHeight

	_, pageH := w.pdf.GetPageSize()
	_, _, _, bottom := w.pdf.GetMargins()
	if w.pdf.GetY()+h > pageH-bottom {
		fr, fg, fb := w.pdf.GetFillColor()
		tr, tg, tb := w.pdf.GetTextColor()
		w.pdf.AddPage()
		w.pdf.SetFillColor(fr, fg, fb)
		w.pdf.SetTextColor(tr, tg, tb)
	}

	style := "D"
	if fill {
		style = "FD"
	}
	left, _, _, _ := w.pdf.GetMargins()
	x, y := left, w.pdf.GetY()
	for i, c := range cells {
		w.pdf.Rect(x, y, widths[i], h, style)
		w.pdf.SetXY(x+1, y)
		w.pdf.MultiCell(widths[i]-2, lineHeight, w.tr(c), "", aligns[i], false)
		x += widths[i]
	}
	w.pdf.SetXY(left, y+h)
}

func (w *pdfWriter) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *reportService) RenderWorkOrder(wo *models.WorkOrder) ([]byte, error) {
	w := newPDFWriter("P", wo.UpdatedAt)
	w.pdf.SetTitle("Confined Space Survey Report - "+wo.Title, true)
	w.footer("Work order " + wo.ID.String())

	page := 0
	for _, sec := range WorkOrderSections(wo) {
		if sec.Page != page {
			w.pdf.AddPage()
			if page == 0 {
				s.workOrderHeader(w, wo)
			}
			page = sec.Page
		}
		w.sectionTitle(sec.Title)
		switch sec.Kind {
		case SectionFields:
			s.fields(w, sec.Fields)
		case SectionChecklist:
			s.checklist(w, sec.Items)
		case SectionHazards:
			s.hazards(w, sec.Items)
		case SectionText:
			w.pdf.SetFont("Arial", "", 10)
			w.pdf.MultiCell(0, lineHeight, w.tr(sec.Text), "", "L", false)
		}
	}
	return w.output()
}

func (s *reportService) workOrderHeader(w *pdfWriter, wo *models.WorkOrder) {
	w.pdf.SetTextColor(33, 37, 41)
	w.pdf.SetFont("Arial", "B", 16)
	w.pdf.CellFormat(0, 10, "Confined Space Survey Report", "", 1, "C", false, 0, "")
	w.pdf.SetFont("Arial", "", 12)
	w.pdf.MultiCell(0, 7, w.tr(wo.Title), "", "C", false)
	w.pdf.Ln(2)
}

func (s *reportService) fields(w *pdfWriter, fields []ReportField) {
	labelW := 60.0
	for _, f := range fields {
		w.pdf.SetFont("Arial", "B", 10)
		w.pdf.CellFormat(labelW, lineHeight+1, w.tr(f.Label+":"), "", 0, "L", false, 0, "")
		w.pdf.SetFont("Arial", "", 10)
		w.pdf.MultiCell(0, lineHeight+1, w.tr(f.Value), "", "L", false)
	}
}

func checkMarks(a models.YesNo) (yes, no, na string) {
	switch a {
	case models.Yes:
		return "X", "", ""
	case models.No:
		return "", "X", ""
	default:
		return "", "", "X"
	}
}

func (s *reportService) checklist(w *pdfWriter, items []models.AssessmentItem) {
	total := w.printableWidth()
	mark := 18.0
	widths := []float64{total - 3*mark, mark, mark, mark}
	aligns := []string{"L", "C", "C", "C"}

	w.pdf.SetFont("Arial", "B", 10)
	w.pdf.SetFillColor(240, 240, 240)
	w.row(widths, aligns, []string{"Characteristic", "Yes", "No", "N/A"}, true)

	w.pdf.SetFont("Arial", "", 9)
	for _, it := range items {
		yes, no, na := checkMarks(it.Answer)
		w.row(widths, aligns, []string{it.Label, yes, no, na}, false)
	}
}

// hazards prints each question with its answer, followed by the
// description row when the answer is Y.
func (s *reportService) hazards(w *pdfWriter, items []models.AssessmentItem) {
	total := w.printableWidth()
	answerW := 25.0
	widths := []float64{total - answerW, answerW}
	aligns := []string{"L", "C"}

	w.pdf.SetFont("Arial", "B", 10)
	w.pdf.SetFillColor(240, 240, 240)
	w.row(widths, aligns, []string{"Question", "Answer"}, true)

	for _, it := range items {
		w.pdf.SetFont("Arial", "", 9)
		answer := "No"
		if it.Answer.Bool() {
			answer = "Yes"
		}
		w.row(widths, aligns, []string{it.Label, answer}, false)
		if it.Answer.Bool() && it.DescriptionField != "" {
			w.pdf.SetFont("Arial", "I", 9)
			w.row([]float64{total}, []string{"L"}, []string{"Description: " + orDash(it.Description)}, false)
		}
	}
}

func (s *reportService) RenderTabular(title string, columns []ReportColumn, rows [][]string, generatedAt time.Time) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("tabular report %q has no columns", title)
	}

	w := newPDFWriter("L", generatedAt)
	w.pdf.SetTitle(title, true)
	w.footer(reportBrand + " - " + title)

	var weight float64
	for _, c := range columns {
		weight += c.Width
	}
	widths := make([]float64, len(columns))
	aligns := make([]string, len(columns))
	headers := make([]string, len(columns))
	total := w.printableWidth()
	for i, c := range columns {
		if weight > 0 {
			widths[i] = total * c.Width / weight
		} else {
			widths[i] = total / float64(len(columns))
		}
		aligns[i] = "L"
		headers[i] = c.Header
	}

	w.pdf.SetHeaderFunc(func() {
		w.pdf.SetTextColor(33, 37, 41)
		w.pdf.SetFont("Arial", "B", 14)
		w.pdf.CellFormat(total/2, 8, reportBrand, "", 0, "L", false, 0, "")
		w.pdf.SetFont("Arial", "", 9)
		w.pdf.CellFormat(total/2, 8, "Generated "+generatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "R", false, 0, "")
		w.pdf.SetFont("Arial", "B", 12)
		w.pdf.CellFormat(0, 8, w.tr(title), "", 1, "L", false, 0, "")
		w.pdf.Ln(2)

		w.pdf.SetFont("Arial", "B", 9)
		w.pdf.SetFillColor(52, 73, 94)
		w.pdf.SetTextColor(255, 255, 255)
		w.row(widths, aligns, headers, true)
		w.pdf.SetTextColor(33, 37, 41)
		w.pdf.SetFont("Arial", "", 9)
	})

	w.pdf.AddPage()
	for i, r := range rows {
		cells := make([]string, len(columns))
		copy(cells, r)
		zebra := i%2 == 1
		if zebra {
			w.pdf.SetFillColor(245, 247, 250)
		}
		w.row(widths, aligns, cells, zebra)
	}

	w.pdf.SetFont("Arial", "B", 9)
	w.pdf.SetFillColor(230, 236, 245)
	w.row([]float64{total}, []string{"R"}, []string{fmt.Sprintf("Total records: %d", len(rows))}, true)

	return w.output()
}
