package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hackgods/clinic-reservation-engine/internal/db"
)

const (
	clinicCount = 20
	doctorCount = 150
	slotDays    = 14
	firstSlotHr = 9
	lastSlotHr  = 16
	slotBatch   = 500
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type doctorRow struct {
	ID       int64
	ClinicID uuid.UUID
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinics, err := seedClinics(context.Background(), pool, clinicCount)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	doctors, err := seedDoctors(context.Background(), pool, clinics, doctorCount)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctors); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, legal_name, address, city, state, phone)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id,
			gofakeit.Company()+" Clinic",
			gofakeit.Street(),
			gofakeit.City(),
			gofakeit.StateAbr(),
			gofakeit.Phone(),
		)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("clinics seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, count int) ([]doctorRow, error) {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	doctors := make([]doctorRow, 0, count)
	for i := 0; i < count; i++ {
		clinicID := clinics[gofakeit.Number(0, len(clinics)-1)]
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		price := gofakeit.Price(80, 400)

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (clinic_id, name, specialty, consultation_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, clinicID, "Dr. "+gofakeit.Name(), spec, price).Scan(&id)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, doctorRow{ID: id, ClinicID: clinicID})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return doctors, nil
}

// seedSlots opens an hourly agenda for every doctor over the coming days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctors []doctorRow) error {
	type slot struct {
		doctor doctorRow
		date   time.Time
		hour   int
	}

	var slots []slot
	today := time.Now().Truncate(24 * time.Hour)
	for _, d := range doctors {
		for day := 0; day < slotDays; day++ {
			date := today.AddDate(0, 0, day)
			for hr := firstSlotHr; hr <= lastSlotHr; hr++ {
				slots = append(slots, slot{doctor: d, date: date, hour: hr})
			}
		}
	}

	log.Printf("seeding %d slots", len(slots))

	for offset := 0; offset < len(slots); offset += slotBatch {
		end := offset + slotBatch
		if end > len(slots) {
			end = len(slots)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for _, s := range slots[offset:end] {
			_, err := tx.Exec(ctx, `
				INSERT INTO available_slots (doctor_id, clinic_id, slot_date, slot_time, is_available)
				VALUES ($1, $2, $3, $4::time, true)
			`, s.doctor.ID, s.doctor.ClinicID, s.date, fmt.Sprintf("%02d:00:00", s.hour))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("slots seeded: %d/%d", end, len(slots))
	}

	log.Println("slots seeded")
	return nil
}
