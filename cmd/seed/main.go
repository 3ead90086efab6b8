package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hackgods/dentalreserve/internal/apiclient"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

type seedConfig struct {
	APIBaseURL    string        `envconfig:"SEED_API_BASE_URL" default:"http://localhost:8000"`
	AdminEmail    string        `envconfig:"SEED_ADMIN_EMAIL" default:"admin@dentalreserve.ca"`
	AdminPassword string        `envconfig:"SEED_ADMIN_PASSWORD" default:"Admin123!"`
	Clinics       int           `envconfig:"SEED_CLINICS" default:"10"`
	Appointments  int           `envconfig:"SEED_APPOINTMENTS" default:"200"`
	Timeout       time.Duration `envconfig:"SEED_TIMEOUT" default:"2m"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
}

var cities = []struct {
	Name     string
	Province string
}{
	{"Toronto", "ON"},
	{"Ottawa", "ON"},
	{"Vancouver", "BC"},
	{"Victoria", "BC"},
	{"Montreal", "QC"},
	{"Quebec City", "QC"},
	{"Calgary", "AB"},
	{"Edmonton", "AB"},
	{"Winnipeg", "MB"},
	{"Halifax", "NS"},
}

var services = []string{
	"洗牙",
	"补牙",
	"根管治疗",
	"牙齿矫正",
	"种植牙",
	"牙齿美白",
	"牙周治疗",
	"儿童牙科",
}

var visitNotes = []string{
	"first visit",
	"sensitive teeth",
	"prefers morning reminders",
	"bring previous x-rays",
	"insurance details to follow",
}

var timeSlots = []string{"09:00", "09:30", "10:00", "10:30", "11:00", "13:30", "14:00", "15:00", "16:30"}

func main() {
	_ = godotenv.Load()

	var cfg seedConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Default().Fatal(err, "read seed config")
	}

	logger := logging.New(cfg.LogLevel, "dev").With("service", "seed")
	logger.Info("seed starting", "api", cfg.APIBaseURL, "clinics", cfg.Clinics, "appointments", cfg.Appointments)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client := apiclient.New(cfg.APIBaseURL, nil)

	login, err := client.Login(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Fatal(err, "admin login failed")
	}
	admin := client.WithToken(login.Token)

	if err := seedClinics(ctx, admin, cfg.Clinics, logger); err != nil {
		logger.Fatal(err, "seed clinics")
	}
	if err := seedAppointments(ctx, client, cfg.Appointments, logger); err != nil {
		logger.Fatal(err, "seed appointments")
	}

	logger.Info("seed complete")
}

func seedClinics(ctx context.Context, c *apiclient.Client, count int, logger *logging.Logger) error {
	logger.Info("seeding clinics", "count", count)

	for i := 0; i < count; i++ {
		city := cities[gofakeit.Number(0, len(cities)-1)]
		rating := float64(gofakeit.Number(35, 50)) / 10

		offered := pickServices(3)

		_, err := c.AddClinic(ctx, apiclient.AddClinicInput{
			Name:     fmt.Sprintf("%s %s Dental", city.Name, gofakeit.LastName()),
			Address:  fmt.Sprintf("%s, %s, %s %s", gofakeit.Street(), city.Name, city.Province, gofakeit.Zip()),
			Phone:    gofakeit.Phone(),
			Email:    gofakeit.Email(),
			City:     city.Name,
			Services: offered,
			Rating:   &rating,
		})
		if err != nil {
			return fmt.Errorf("add clinic %d: %w", i, err)
		}
	}

	logger.Info("clinics seeded")
	return nil
}

func seedAppointments(ctx context.Context, c *apiclient.Client, count int, logger *logging.Logger) error {
	clinics, err := c.ListClinics(ctx)
	if err != nil {
		return fmt.Errorf("list clinics: %w", err)
	}
	if len(clinics) == 0 {
		return fmt.Errorf("no clinics to book against")
	}

	logger.Info("seeding appointments", "count", count, "clinics", len(clinics))

	const progressEvery = 50
	for i := 0; i < count; i++ {
		cl := clinics[gofakeit.Number(0, len(clinics)-1)]
		service := gofakeit.RandomString(services)
		if len(cl.Services) > 0 {
			service = gofakeit.RandomString(cl.Services)
		}

		date := gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 2, 0)).Format("2006-01-02")

		in := apiclient.BookInput{
			ClinicID:     cl.ID,
			Date:         date,
			Time:         gofakeit.RandomString(timeSlots),
			Service:      service,
			PatientName:  gofakeit.Name(),
			PatientEmail: gofakeit.Email(),
			PatientPhone: gofakeit.Phone(),
		}
		if gofakeit.Bool() {
			notes := gofakeit.RandomString(visitNotes)
			in.Notes = &notes
		}

		if _, err := c.Book(ctx, in); err != nil {
			return fmt.Errorf("book appointment %d: %w", i, err)
		}

		if (i+1)%progressEvery == 0 {
			logger.Info("appointments seeded", "done", i+1, "total", count)
		}
	}

	logger.Info("appointments seeded", "done", count, "total", count)
	return nil
}

// pickServices returns n distinct services in random order.
func pickServices(n int) []string {
	if n > len(services) {
		n = len(services)
	}
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		s := gofakeit.RandomString(services)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
