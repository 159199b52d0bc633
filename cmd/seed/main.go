// Seeds a handful of pending bookings so invoice issuance can be exercised
// locally. Booking creation itself belongs to the booking service; this is a
// stand-in for it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tripstay/internal/database"
	"tripstay/internal/domain"
	"tripstay/internal/repository"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	repo := repository.NewBookingRepository(db)
	ctx := context.Background()

	checkIn := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	seeds := []domain.Booking{
		{Reference: "TRP-0001", UserID: 1, HotelName: "Ubud Garden Resort", Destination: "Bali", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 3), Guests: 2, Amount: 2_450_000, Currency: "IDR"},
		{Reference: "TRP-0002", UserID: 1, HotelName: "Borobudur View Hotel", Destination: "Yogyakarta", CheckIn: checkIn.AddDate(0, 0, 7), CheckOut: checkIn.AddDate(0, 0, 9), Guests: 1, Amount: 980_000, Currency: "IDR"},
		{Reference: "TRP-0003", UserID: 2, HotelName: "Toba Lakeside Lodge", Destination: "Lake Toba", CheckIn: checkIn.AddDate(0, 1, 0), CheckOut: checkIn.AddDate(0, 1, 4), Guests: 4, Amount: 3_600_000, Currency: "IDR"},
	}

	for i := range seeds {
		b := seeds[i]
		b.Status = domain.BookingPending
		b.PaymentStatus = domain.PaymentNone
		if err := repo.Create(ctx, &b); err != nil {
			if errors.Is(err, repository.ErrDuplicateReference) {
				log.Printf("booking %s already seeded, skipping", b.Reference)
				continue
			}
			log.Fatal(err)
		}
		fmt.Printf("seeded booking id=%d reference=%s amount=%d %s\n", b.ID, b.Reference, b.Amount, b.Currency)
	}
}
