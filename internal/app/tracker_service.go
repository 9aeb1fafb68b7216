// internal/app/tracker_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/notification"
)

// Reading is everything derived from a single clock sample.
type Reading struct {
	Epoch      time.Time         `json:"epoch"`
	At         time.Time         `json:"at"`
	Breakdown  elapsed.Breakdown `json:"breakdown"`
	HourBucket int64             `json:"hour_bucket"`
}

// Display receives every fresh reading.
type Display interface {
	Publish(r Reading)
}

// TickResult describes what one tick did.
type TickResult struct {
	Reading     Reading
	Crossed     bool
	DispatchErr error
}

// TrackerService recomputes the elapsed breakdown and fires the hourly
// notification. One instance owns its own boundary state.
type TrackerService struct {
	epoch         time.Time
	clock         elapsed.Clock
	dispatcher    notification.Dispatcher
	display       Display
	notifier      HourBoundaryNotifier
	title         string
	notifyTimeout time.Duration
	logger        *logrus.Entry
}

func NewTrackerService(
	epoch time.Time,
	clock elapsed.Clock,
	dispatcher notification.Dispatcher,
	display Display,
	title string,
	notifyTimeout time.Duration,
	logger *logrus.Entry,
) *TrackerService {
	return &TrackerService{
		epoch:         epoch,
		clock:         clock,
		dispatcher:    dispatcher,
		display:       display,
		title:         title,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

// Epoch returns the instant elapsed time is measured from.
func (s *TrackerService) Epoch() time.Time {
	return s.epoch
}

// Read samples the clock and derives a reading without touching notification state.
func (s *TrackerService) Read() Reading {
	now := s.clock.Now()
	return Reading{
		Epoch:      s.epoch,
		At:         now,
		Breakdown:  elapsed.Decompose(s.epoch, now),
		HourBucket: elapsed.HourBucket(s.epoch, now),
	}
}

// Tick runs one recomputation: publish the breakdown, then check the hour
// bucket for a crossing. The crossing is recorded before dispatching, and a
// failed dispatch is logged and returned but never retried.
func (s *TrackerService) Tick(ctx context.Context) TickResult {
	reading := s.Read()
	ticksCounter.Inc()
	hourBucketGauge.Set(float64(reading.HourBucket))

	if s.display != nil {
		s.display.Publish(reading)
	}

	result := TickResult{Reading: reading}
	if !s.notifier.Observe(reading.HourBucket) {
		return result
	}
	result.Crossed = true
	crossingsCounter.Inc()
	if reading.HourBucket < 1 {
		// Epoch still ahead of the clock: nothing has elapsed to announce.
		return result
	}

	tickLogger := s.logger.WithFields(logrus.Fields{
		"hour_bucket": reading.HourBucket,
		"breakdown":   reading.Breakdown.String(),
	})
	tickLogger.Info("Hour boundary crossed, dispatching notification")

	dispatchCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.dispatcher.Dispatch(dispatchCtx, s.title, s.notificationBody(reading)); err != nil {
		result.DispatchErr = fmt.Errorf("dispatch notification for hour %d: %w", reading.HourBucket, err)
		if errors.Is(err, notification.ErrPermissionDenied) {
			dispatchCounter.WithLabelValues("denied").Inc()
			tickLogger.WithError(err).Warn("Notification permission denied")
		} else {
			dispatchCounter.WithLabelValues("failed").Inc()
			tickLogger.WithError(err).Error("Failed to dispatch notification")
		}
		return result
	}
	dispatchCounter.WithLabelValues("sent").Inc()
	tickLogger.Debug("Notification dispatched")
	return result
}

// LastNotifiedHour returns the last observed hour bucket.
func (s *TrackerService) LastNotifiedHour() (int64, bool) {
	return s.notifier.LastHour()
}

func (s *TrackerService) notificationBody(r Reading) string {
	return fmt.Sprintf("%d hours since %s (%s)", r.HourBucket, s.epoch.Format("2 Jan 2006 15:04"), r.Breakdown.Widget())
}

// Snapshot is a Display holding the latest reading for readers such as the
// HTTP API and the bot.
type Snapshot struct {
	mu      sync.RWMutex
	reading Reading
	ok      bool
}

func (s *Snapshot) Publish(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = r
	s.ok = true
}

// Latest returns the most recent reading, or false before the first tick.
func (s *Snapshot) Latest() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading, s.ok
}

// LatestReader serves the latest published reading, and a fresh one before
// the first tick has been published.
type LatestReader struct {
	Snapshot *Snapshot
	Tracker  *TrackerService
}

func (r LatestReader) Read() Reading {
	if reading, ok := r.Snapshot.Latest(); ok {
		return reading
	}
	return r.Tracker.Read()
}
