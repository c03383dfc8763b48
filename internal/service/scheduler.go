package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"courier/internal/repository"
)

// AssignmentScheduler re-attempts matching for deliveries that are still
// PENDING on a fixed cadence. The immediate path at delivery creation and
// this sweep both funnel into the same matcher, which serializes them per
// delivery.
type AssignmentScheduler struct {
	deliveryRepo    repository.DeliveryRepository
	matchingService MatchingServiceInterface
	interval        time.Duration
	cron            *cron.Cron
	attemptedTotal  prometheus.Counter
	assignedTotal   prometheus.Counter
}

// NewAssignmentScheduler creates a new AssignmentScheduler sweeping at the
// given interval. The counters may be nil when metrics are not wired.
func NewAssignmentScheduler(
	deliveryRepo repository.DeliveryRepository,
	matchingService MatchingServiceInterface,
	interval time.Duration,
	attemptedTotal prometheus.Counter,
	assignedTotal prometheus.Counter,
) *AssignmentScheduler {
	return &AssignmentScheduler{
		deliveryRepo:    deliveryRepo,
		matchingService: matchingService,
		interval:        interval,
		cron:            cron.New(),
		attemptedTotal:  attemptedTotal,
		assignedTotal:   assignedTotal,
	}
}

// Start begins the periodic sweep.
func (s *AssignmentScheduler) Start() {
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		summary := s.Sweep(context.Background())
		log.Printf("[SWEEP] attempted=%d assigned=%d", summary.Attempted, summary.Assigned)
	}))

	s.cron.Start()
	log.Printf("Assignment sweep started (every %s)", s.interval)
}

// Stop stops the periodic sweep. Any sweep already running completes.
func (s *AssignmentScheduler) Stop() {
	s.cron.Stop()
	log.Println("Assignment sweep stopped")
}

// SweepSummary reports the outcome of one sweep run.
type SweepSummary struct {
	Attempted int
	Assigned  int
}

// Sweep loads all PENDING deliveries with no courier bound and attempts to
// match each one independently. One delivery's failure never aborts the
// batch: no-candidate and lost-race outcomes are counted and skipped,
// unexpected errors are logged and skipped.
func (s *AssignmentScheduler) Sweep(ctx context.Context) SweepSummary {
	var summary SweepSummary

	pending, err := s.deliveryRepo.GetPendingUnassigned(ctx)
	if err != nil {
		log.Printf("[SWEEP] failed to load pending deliveries: %v", err)
		return summary
	}

	for _, delivery := range pending {
		summary.Attempted++
		if s.attemptedTotal != nil {
			s.attemptedTotal.Inc()
		}

		_, err := s.matchingService.Match(ctx, MatchRequest{DeliveryID: delivery.ID})
		if err != nil {
			switch {
			case errors.Is(err, ErrNoCourierAvailable):
				// Stays PENDING for the next run.
			case errors.Is(err, ErrDeliveryAlreadyAssigned), errors.Is(err, ErrDeliveryNotPending):
				// Someone else got there first; nothing to do.
			default:
				log.Printf("[SWEEP] delivery %s: match failed: %v", delivery.ID, err)
			}
			continue
		}

		summary.Assigned++
		if s.assignedTotal != nil {
			s.assignedTotal.Inc()
		}
	}

	return summary
}
