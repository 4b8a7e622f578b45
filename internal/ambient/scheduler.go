// Package ambient runs the persona's unsolicited chatter: ad reminders,
// lurker call-outs, silence commentary and the occupancy check that paces
// itself by how empty the channel is.
package ambient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"marrow-bot/internal/chat"
	"marrow-bot/internal/ledger"
	"marrow-bot/internal/metrics"
	"marrow-bot/internal/persona"
	"marrow-bot/internal/storage"
)

// AdTimer is the persisted time of the last ad reminder.
type AdTimer struct {
	LastTriggerTime *time.Time `json:"last_trigger_time"`
}

// Settings are the routine cadences and thresholds.
type Settings struct {
	AdCheckInterval        time.Duration
	AdCooldown             time.Duration
	LurkerInterval         time.Duration
	SilenceInterval        time.Duration
	SilenceThreshold       time.Duration
	OccupancyInterval      time.Duration
	OccupancyEmptyInterval time.Duration
	// ReportSpec is the cron spec of the daily report, in UTC.
	ReportSpec string
}

// DefaultSettings are the stock cadences.
func DefaultSettings() Settings {
	return Settings{
		AdCheckInterval:        5 * time.Minute,
		AdCooldown:             20 * time.Minute,
		LurkerInterval:         10 * time.Minute,
		SilenceInterval:        5 * time.Minute,
		SilenceThreshold:       15 * time.Minute,
		OccupancyInterval:      5 * time.Minute,
		OccupancyEmptyInterval: 2 * time.Minute,
		ReportSpec:             "0 21 * * *",
	}
}

type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler owns the ambient routines.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	channel  chat.Channel
	ledger   *ledger.Ledger
	activity *Activity
	profile  *persona.Profile
	store    storage.Store
	settings Settings
	now      func() time.Time
	log      zerolog.Logger

	reportFunc func(ctx context.Context) error

	// adMu serializes CheckAds so two runs cannot both fire.
	adMu sync.Mutex

	mu      sync.Mutex
	running bool
	ad      AdTimer
	empty   bool
}

// New loads the ad timer from store and prepares the routines.
func New(ch chat.Channel, l *ledger.Ledger, activity *Activity, profile *persona.Profile, store storage.Store, settings Settings, log zerolog.Logger, opts ...Option) (*Scheduler, error) {
	ad, err := storage.Load(store, storage.AdTimer, AdTimer{})
	if err != nil {
		return nil, fmt.Errorf("load ad timer: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:      ctx,
		cancel:   cancel,
		channel:  ch,
		ledger:   l,
		activity: activity,
		profile:  profile,
		store:    store,
		settings: settings,
		now:      time.Now,
		log:      log,
		ad:       ad,
	}
	for _, o := range opts {
		o(s)
	}
	cronLog := log.With().Str("subsystem", "cron").Logger()
	cl := cron.PrintfLogger(&cronLog)
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s, nil
}

// SetReportFunction sets the daily report job.
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start runs every routine once and then on its cadence.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	jobs := []struct {
		every time.Duration
		run   func()
	}{
		{s.settings.AdCheckInterval, func() { _, _ = s.CheckAds(s.ctx) }},
		{s.settings.LurkerInterval, func() { s.CallOutLurkers(s.ctx) }},
		{s.settings.SilenceInterval, func() { s.CheckSilence(s.ctx) }},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", j.every), j.run); err != nil {
			return fmt.Errorf("schedule ambient routine: %w", err)
		}
	}
	if s.reportFunc != nil {
		_, err := s.cron.AddFunc(s.settings.ReportSpec, func() {
			s.log.Info().Msg("triggered daily report")
			if err := s.reportFunc(s.ctx); err != nil {
				s.log.Error().Err(err).Msg("daily report failed")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule daily report: %w", err)
		}
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for _, j := range jobs {
			if s.ctx.Err() != nil {
				return
			}
			j.run()
		}
	}()
	go s.occupancyLoop()

	s.cron.Start()
	s.running = true
	s.log.Info().
		Dur("ad_every", s.settings.AdCheckInterval).
		Dur("lurker_every", s.settings.LurkerInterval).
		Dur("silence_every", s.settings.SilenceInterval).
		Msg("ambient scheduler started")
	return nil
}

// Stop cancels in-flight sends and waits for every routine to return.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.Info().Msg("ambient scheduler stopped")
}

// IsRunning reports whether Start has been called and Stop has not.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CheckAds sends the ad pair when no ad has run within the cooldown.
func (s *Scheduler) CheckAds(ctx context.Context) (bool, error) {
	s.adMu.Lock()
	defer s.adMu.Unlock()
	now := s.now()
	s.mu.Lock()
	last := s.ad.LastTriggerTime
	s.mu.Unlock()
	if last != nil && now.Sub(*last) < s.settings.AdCooldown {
		return false, nil
	}

	if err := s.channel.Send(ctx, s.profile.Say(persona.PhraseAdLead, "")); err != nil {
		s.log.Warn().Err(err).Msg("failed to send ad lead-in")
		return false, err
	}
	s.mu.Lock()
	s.ad.LastTriggerTime = &now
	saveErr := storage.Save(s.store, storage.AdTimer, s.ad)
	s.mu.Unlock()
	if saveErr != nil {
		s.log.Error().Err(saveErr).Msg("failed to persist ad timer")
	}
	if err := s.channel.Send(ctx, s.profile.Say(persona.PhraseAdFollow, "")); err != nil {
		s.log.Warn().Err(err).Msg("failed to send ad follow-up")
	}
	metrics.AmbientMessagesTotal.WithLabelValues("ad").Inc()
	s.log.Info().Time("at", now).Msg("ad reminder sent")
	return true, saveErr
}

// LastAd returns when the last ad ran.
func (s *Scheduler) LastAd() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ad.LastTriggerTime == nil {
		return time.Time{}, false
	}
	return *s.ad.LastTriggerTime, true
}

// CallOutLurkers names every returning participant who never spoke. It
// returns how many call-outs were sent.
func (s *Scheduler) CallOutLurkers(ctx context.Context) int {
	sent := 0
	for _, name := range s.ledger.Lurkers() {
		if ctx.Err() != nil {
			break
		}
		if err := s.channel.Send(ctx, s.profile.Say(persona.PhraseLurker, name)); err != nil {
			s.log.Warn().Err(err).Str("participant", name).Msg("failed to call out lurker")
			continue
		}
		sent++
	}
	if sent > 0 {
		metrics.AmbientMessagesTotal.WithLabelValues("lurker").Add(float64(sent))
		s.log.Info().Int("count", sent).Msg("called out lurkers")
	}
	return sent
}

// CheckSilence comments on the chat once it has been quiet past the threshold.
func (s *Scheduler) CheckSilence(ctx context.Context) bool {
	quiet := s.now().Sub(s.activity.Last())
	if quiet <= s.settings.SilenceThreshold {
		return false
	}
	if err := s.channel.Send(ctx, s.profile.Say(persona.PhraseSilence, "")); err != nil {
		s.log.Warn().Err(err).Msg("failed to send silence line")
		return false
	}
	metrics.AmbientMessagesTotal.WithLabelValues("silence").Inc()
	s.log.Info().Dur("quiet_for", quiet).Msg("silence commentary sent")
	return true
}

// CheckOccupancy queries how many members are present and returns the wait
// before the next check. Query failures count as an occupied channel.
func (s *Scheduler) CheckOccupancy(ctx context.Context) time.Duration {
	n, err := s.channel.Occupancy(ctx)
	empty := err == nil && n <= 1
	if err != nil {
		s.log.Debug().Err(err).Msg("occupancy query failed")
	} else {
		metrics.ChannelOccupancy.Set(float64(n))
	}

	s.mu.Lock()
	s.empty = empty
	s.mu.Unlock()

	if empty {
		return s.settings.OccupancyEmptyInterval
	}
	return s.settings.OccupancyInterval
}

// ChannelEmpty reports the result of the last occupancy check.
func (s *Scheduler) ChannelEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.empty
}

func (s *Scheduler) occupancyLoop() {
	defer s.wg.Done()
	for {
		wait := s.CheckOccupancy(s.ctx)
		t := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
