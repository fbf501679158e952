package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-scanner/internal/config"
	"ms-scanner/internal/models"
	"ms-scanner/internal/wallet"
)

// Development helper: drops, recreates and seeds the scanner schema so a
// local instance has something to scan. Production schemas go through the
// migrations directory instead.
func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	_ = dropTables(ctx, db)

	log.Println("Creating tables...")
	createTables(ctx, db)

	log.Println("Seeding sample data...")
	_ = seedData(ctx, db)

	log.Println("✅ Done.")
}

func dropTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.ScannerAction)(nil),
		(*models.ScanSeq)(nil),
		(*models.ScanPoint)(nil),
		(*models.RegistrationMeta)(nil),
		(*models.Registration)(nil),
		(*models.TicketCategory)(nil),
		(*models.TicketEvent)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
	return nil
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.TicketEvent)(nil),
		(*models.TicketCategory)(nil),
		(*models.Registration)(nil),
		(*models.RegistrationMeta)(nil),
		(*models.ScanPoint)(nil),
		(*models.ScanSeq)(nil),
		(*models.ScannerAction)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("❌ Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) error {
	event := models.TicketEvent{
		Name:      "Convention 2026",
		StartDate: time.Now().AddDate(0, 1, 0),
		EndDate:   time.Now().AddDate(0, 1, 2),
	}
	if _, err := db.NewInsert().Model(&event).Exec(ctx); err != nil {
		return err
	}

	category := models.TicketCategory{
		EventID:         event.ID,
		Name:            "Standard",
		Color:           "#ffffff",
		BackgroundColor: "#c9462c",
	}
	if _, err := db.NewInsert().Model(&category).Exec(ctx); err != nil {
		return err
	}

	points := []models.ScanPoint{
		{EventID: event.ID, Name: "Entrée principale", Count: true},
		{EventID: event.ID, Name: "Entrée presse"},
	}
	if _, err := db.NewInsert().Model(&points).Exec(ctx); err != nil {
		return err
	}

	registrations := []models.Registration{
		{
			EventID:     event.ID,
			Numero:      "000001",
			CategoryID:  category.ID,
			FullName:    "Alice Wonderland",
			Gender:      models.GenderFemale,
			WalletToken: wallet.NewDownloadToken(),
		},
		{
			EventID:     event.ID,
			Numero:      "000002",
			CategoryID:  category.ID,
			FullName:    "Bob Builder",
			Gender:      models.GenderMale,
			WalletToken: wallet.NewDownloadToken(),
		},
	}
	if _, err := db.NewInsert().Model(&registrations).Exec(ctx); err != nil {
		return err
	}

	metas := []models.RegistrationMeta{
		{RegistrationID: registrations[0].ID, Property: "bus", Value: "Lille"},
		{RegistrationID: registrations[1].ID, Property: "bus", Value: "Clermont"},
	}
	_, err := db.NewInsert().Model(&metas).Exec(ctx)
	return err
}
