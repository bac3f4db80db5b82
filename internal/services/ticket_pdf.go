package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/smarttransit/busline-backend/internal/models"
)

// TicketPDF renders the e-ticket of a booking the principal may read
func (s *BookingService) TicketPDF(ctx context.Context, principal models.Principal, bookingID string) ([]byte, string, error) {
	booking, err := s.GetBooking(ctx, principal, bookingID)
	if err != nil {
		return nil, "", err
	}
	if booking.IsCancelled() {
		return nil, "", newError(KindValidation, "booking %s is cancelled", bookingID)
	}

	pdfBytes, err := buildTicketPDF(booking)
	if err != nil {
		return nil, "", storeError("failed to render ticket", err)
	}
	return pdfBytes, booking.TicketNumber + ".pdf", nil
}

func buildTicketPDF(b *models.BookingDetails) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+b.TicketNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	bus := "-"
	if b.BusPlateNumber != nil {
		bus = *b.BusPlateNumber
	}

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Ticket         : %s", b.TicketNumber),
		fmt.Sprintf("Passenger      : %s", b.PassengerName),
		fmt.Sprintf("Phone          : %s", b.PassengerPhone),
		fmt.Sprintf("Route          : %s %s", b.RouteCode, b.RouteName),
		fmt.Sprintf("From / To      : %s -> %s", b.OriginName, b.DestinationName),
		fmt.Sprintf("Departure      : %s", b.DepartureTime.Format("2006-01-02 15:04 MST")),
		fmt.Sprintf("Seats          : %s", strings.Join(b.SeatNumbers, ", ")),
		fmt.Sprintf("Bus            : %s", bus),
		fmt.Sprintf("Total          : %.2f", b.TotalAmount),
		fmt.Sprintf("Status         : %s / %s", b.Status, b.PaymentStatus),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Courier", "B", 11)
	pdf.Cell(0, 7, b.QRCode)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this ticket when boarding. The code above is scanned by the conductor.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
