package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog/log"

	"github.com/dermaluz/agenda/internal/agenda"
	"github.com/dermaluz/agenda/internal/db"
	"github.com/dermaluz/agenda/internal/docstore"
	"github.com/dermaluz/agenda/internal/logging"
)

var treatmentNames = []string{
	"Facial",
	"Limpieza profunda",
	"Peeling",
	"Microdermoabrasión",
	"Depilación láser",
	"Masaje descontracturante",
	"Radiofrecuencia",
	"Drenaje linfático",
	"Mesoterapia",
	"Lifting de pestañas",
}

func main() {
	logging.Setup("seed", "dev")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	store := docstore.New(pool)
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("migrate docstore")
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedOffices(context.Background(), store, 3); err != nil {
		log.Fatal().Err(err).Msg("seed offices")
	}
	if err := seedTreatments(context.Background(), store); err != nil {
		log.Fatal().Err(err).Msg("seed treatments")
	}
	if err := seedPatients(context.Background(), store, 200); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedAppointments(context.Background(), store); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}

	log.Info().Msg("seed complete")
}

func put(ctx context.Context, store *docstore.Store, collection string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = store.Put(ctx, collection, data)
	return err
}

func seedOffices(ctx context.Context, store *docstore.Store, count int) error {
	log.Info().Int("count", count).Msg("seeding offices")

	for i := 1; i <= count; i++ {
		office := map[string]any{
			"name":    fmt.Sprintf("Consultorio %d", i),
			"address": gofakeit.Address().Address,
		}
		if err := put(ctx, store, "offices", office); err != nil {
			return err
		}
	}
	return nil
}

func seedTreatments(ctx context.Context, store *docstore.Store) error {
	log.Info().Int("count", len(treatmentNames)).Msg("seeding treatments")

	for _, name := range treatmentNames {
		treatment := map[string]any{
			"name":     name,
			"price":    gofakeit.Price(20, 250),
			"duration": 30,
		}
		if err := put(ctx, store, "treatments", treatment); err != nil {
			return err
		}
	}
	return nil
}

func seedPatients(ctx context.Context, store *docstore.Store, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	for i := 0; i < count; i++ {
		patient := map[string]any{
			"name":    gofakeit.Name(),
			"contact": gofakeit.Phone(),
		}
		if err := put(ctx, store, "patients", patient); err != nil {
			return err
		}
	}
	return nil
}

// seedAppointments books a scattering of confirmed appointments across
// the current week. Slot collisions with already seeded rows are skipped,
// not treated as failures.
func seedAppointments(ctx context.Context, store *docstore.Store) error {
	log.Info().Msg("seeding appointments")

	patients, err := names(ctx, store, "patients")
	if err != nil {
		return err
	}
	offices, err := names(ctx, store, "offices")
	if err != nil {
		return err
	}

	days := agenda.WeekDays(time.Now())
	slots := agenda.TimeSlots()

	booked := 0
	for _, day := range days {
		for i := 0; i < 4; i++ {
			appt := map[string]any{
				"date":      day.Format(agenda.DateLayout),
				"time":      slots[gofakeit.Number(0, len(slots)-1)],
				"office":    offices[gofakeit.Number(0, len(offices)-1)],
				"patient":   patients[gofakeit.Number(0, len(patients)-1)],
				"treatment": treatmentNames[gofakeit.Number(0, len(treatmentNames)-1)],
				"status":    string(agenda.StatusConfirmed),
			}
			err := put(ctx, store, "appointments", appt)
			if err != nil {
				if errors.Is(err, docstore.ErrConflict) {
					continue
				}
				return err
			}
			booked++
		}
	}

	log.Info().Int("booked", booked).Msg("appointments seeded")
	return nil
}

func names(ctx context.Context, store *docstore.Store, collection string) ([]string, error) {
	docs, err := store.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(docs))
	for _, d := range docs {
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(d.Data, &payload); err != nil {
			return nil, err
		}
		result = append(result, payload.Name)
	}
	return result, nil
}
