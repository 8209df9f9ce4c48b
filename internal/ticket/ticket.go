// Package ticket renders a booking as a printable PDF e-ticket.
package ticket

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
)

// Render builds the e-ticket PDF for b and a download filename.
func Render(b model.Booking) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "CINEMA E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking      : %s", safe(b.BookingID, "-")),
		fmt.Sprintf("Movie        : %s", safe(b.MovieTitle, b.MovieID)),
		fmt.Sprintf("Show         : %s %s", safe(b.Date, "-"), safe(b.Time, "-")),
		fmt.Sprintf("Tickets      : %d x %.2f", b.Quantity, b.PricePerTicket),
		fmt.Sprintf("Total        : %.2f", b.TotalPrice),
		fmt.Sprintf("Ticket code  : %s", safe(b.TicketID, "-")),
		fmt.Sprintf("Booked at    : %s", b.BookingDate.UTC().Format("2006-01-02 15:04 MST")),
		fmt.Sprintf("Status       : %s", strings.ToUpper(string(b.Status))),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	note := "Please show this ticket at the entrance."
	if b.Cancelled() {
		note = "This booking has been cancelled and is no longer valid."
	}
	pdf.MultiCell(0, 6, note, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), Filename(b), nil
}

// Filename is the suggested download name for b's ticket.
func Filename(b model.Booking) string {
	return fmt.Sprintf("TICKET_%s.pdf", safeFilenamePart(b.BookingID))
}

func safe(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

func safeFilenamePart(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return "NA"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
