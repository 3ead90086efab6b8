package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hackgods/dentalreserve/internal/apiclient"
	"github.com/hackgods/dentalreserve/internal/appointment"
	"github.com/hackgods/dentalreserve/internal/clinic"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string        `envconfig:"SIM_API_BASE_URL" default:"http://localhost:8000"`
	Duration     time.Duration `envconfig:"SIM_DURATION" default:"30s"`
	Workers      int           `envconfig:"SIM_WORKERS" default:"10"`
	BookingRatio float64       `envconfig:"SIM_BOOKING_RATIO" default:"0.5"`
	CallRatio    float64       `envconfig:"SIM_CALL_RATIO" default:"0.2"`
	ReadRatio    float64       `envconfig:"SIM_READ_RATIO" default:"0.3"`
	Patients     int           `envconfig:"SIM_PATIENTS" default:"500"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
}

type patient struct {
	Name  string
	Email string
	Phone string
}

// DataPool holds what workers pick from: clinics fetched from the API,
// generated patients and every appointment ID handed back so far.
type DataPool struct {
	Clinics  []clinic.Clinic
	Patients []patient

	mu           sync.RWMutex
	appointments []string
	seen         map[string]int
}

func NewDataPool(clinics []clinic.Clinic, patients []patient) *DataPool {
	return &DataPool{
		Clinics:  clinics,
		Patients: patients,
		seen:     make(map[string]int),
	}
}

// AddAppointment stores id and reports whether it was already handed out.
func (dp *DataPool) AddAppointment(id string) (duplicate bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.seen[id]++
	if dp.seen[id] > 1 {
		return true
	}
	dp.appointments = append(dp.appointments, id)
	return false
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

// Duplicates lists IDs returned by more than one booking.
func (dp *DataPool) Duplicates() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	var out []string
	for id, n := range dp.seen {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	NotFound  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case apiclient.IsNotFound(err):
		atomic.AddInt64(&om.NotFound, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking       OperationMetrics
	Call          OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Search        OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *apiclient.Client
	logger  *logging.Logger
	metrics Metrics
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		logging.Default().Fatal(err, "invalid config")
	}

	logger := logging.New(cfg.LogLevel, "dev").With("service", "simulate")
	logger.Info("simulator starting",
		"duration", cfg.Duration.String(),
		"workers", cfg.Workers,
		"booking", cfg.BookingRatio,
		"call", cfg.CallRatio,
		"read", cfg.ReadRatio,
	)

	client := apiclient.New(cfg.APIBaseURL, &http.Client{Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	clinics, err := client.ListClinics(ctx)
	cancel()
	if err != nil {
		logger.Fatal(err, "load clinics")
	}
	if len(clinics) == 0 {
		logger.Fatal(errors.New("no clinics"), "nothing to book against")
	}

	pool := NewDataPool(clinics, generatePatients(cfg.Patients))
	logger.Info("data pool ready", "clinics", len(pool.Clinics), "patients", len(pool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   pool,
		client: client,
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	var cfg SimConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return SimConfig{}, fmt.Errorf("read environment: %w", err)
	}
	if cfg.Workers <= 0 {
		return SimConfig{}, errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return SimConfig{}, errors.New("SIM_PATIENTS must be > 0")
	}

	total := cfg.BookingRatio + cfg.CallRatio + cfg.ReadRatio
	if total <= 0 {
		return SimConfig{}, errors.New("operation ratios must sum to a positive value")
	}
	cfg.BookingRatio /= total
	cfg.CallRatio /= total
	cfg.ReadRatio /= total
	return cfg, nil
}

func generatePatients(n int) []patient {
	out := make([]patient, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, patient{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Phone: gofakeit.Phone(),
		})
	}
	return out
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration.String(), "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CallRatio:
			s.doCall(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doSearch(ctx, rng)
			}
		}
	}
}

// record drops results cut short by the end of the run.
func record(ctx context.Context, om *OperationMetrics, start time.Time, err error) {
	if err != nil && ctx.Err() != nil {
		return
	}
	om.Record(time.Since(start), err)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	cl := s.pool.Clinics[rng.Intn(len(s.pool.Clinics))]
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	service := "洗牙"
	if len(cl.Services) > 0 {
		service = cl.Services[rng.Intn(len(cl.Services))]
	}

	start := time.Now()
	appt, err := s.client.Book(ctx, apiclient.BookInput{
		ClinicID:     cl.ID,
		Date:         time.Now().AddDate(0, 0, rng.Intn(30)).Format("2006-01-02"),
		Time:         fmt.Sprintf("%02d:%02d", 9+rng.Intn(8), 30*rng.Intn(2)),
		Service:      service,
		PatientName:  p.Name,
		PatientEmail: p.Email,
		PatientPhone: p.Phone,
	})
	record(ctx, &s.metrics.Booking, start, err)

	if err == nil && appt.ID != "" {
		if dup := s.pool.AddAppointment(appt.ID); dup {
			s.logger.Warn("duplicate appointment id", "appointment_id", appt.ID)
		}
	}
}

func (s *Simulator) doCall(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	direction := appointment.DirectionPatientToClinic
	if rng.Intn(2) == 0 {
		direction = appointment.DirectionClinicToPatient
	}

	start := time.Now()
	_, err := s.client.InitiateCall(ctx, apptID, direction)
	record(ctx, &s.metrics.Call, start, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	_, err := s.client.GetAppointment(ctx, apptID)
	record(ctx, &s.metrics.ReadByID, start, err)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	_, err := s.client.ListAppointments(ctx, p.Email)
	record(ctx, &s.metrics.ListByPatient, start, err)
}

func (s *Simulator) doSearch(ctx context.Context, rng *rand.Rand) {
	cl := s.pool.Clinics[rng.Intn(len(s.pool.Clinics))]

	city := cl.City
	service := ""
	if len(cl.Services) > 0 && rng.Intn(2) == 0 {
		service = cl.Services[rng.Intn(len(cl.Services))]
	}

	start := time.Now()
	_, err := s.client.SearchClinics(ctx, city, service)
	record(ctx, &s.metrics.Search, start, err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Call initiation", &s.metrics.Call)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Search", &s.metrics.Search)

	dups := s.pool.Duplicates()
	fmt.Printf("Duplicate appointment IDs: %d\n", len(dups))
	for _, id := range dups {
		fmt.Printf("  %s\n", id)
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	notFound := atomic.LoadInt64(&om.NotFound)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if notFound > 0 {
		fmt.Printf("  Not found: %d (%.1f%%)\n", notFound, float64(notFound)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
