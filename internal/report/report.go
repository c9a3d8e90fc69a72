// Package report renders a candidate's interview as a printable PDF.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/scoring"
)

// Write renders c's transcript, scores and summary to w.
func Write(w io.Writer, c model.Candidate) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Interview report: "+c.Name, true)
	pdf.SetAuthor("interviewer", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Interview report: "+c.Name))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(35, 7, label)
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 7, tr(value))
		pdf.Ln(7)
	}
	field("Email:", c.Email)
	field("Phone:", c.Phone)
	field("Status:", string(c.InterviewStatus))
	if c.StartTime != nil {
		field("Started:", c.StartTime.Format(time.RFC1123))
	}
	if c.EndTime != nil {
		field("Finished:", c.EndTime.Format(time.RFC1123))
	}
	if c.FinalScore != nil {
		field("Final score:", fmt.Sprintf("%d/100 (%s)", *c.FinalScore, scoring.Label(*c.FinalScore)))
	}
	pdf.Ln(4)

	if c.Summary != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.Cell(0, 8, "Summary")
		pdf.Ln(9)
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, tr(c.Summary), "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, "Answers")
	pdf.Ln(9)
	if len(c.Answers) == 0 {
		pdf.SetFont("Arial", "I", 11)
		pdf.Cell(0, 7, "No answers recorded.")
		pdf.Ln(7)
	}
	for i, a := range c.Answers {
		pdf.SetFont("Arial", "B", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. [%s] %s", i+1, a.Difficulty, a.Question)), "", "L", false)
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, tr(a.Answer), "", "L", false)
		pdf.SetFont("Arial", "I", 10)
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("Score %d/100, %ds spent. %s", a.Score, a.TimeSpent, a.Feedback)), "", "L", false)
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
