package pollster

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/chain"
	"github.com/rumsystem/nft-bbs-sub001/db"
	"github.com/rumsystem/nft-bbs-sub001/models"
)

var (
	recordsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftbbs_records_applied_total",
		Help: "The total number of records processed, by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nftbbs_poll_batch_duration_seconds",
		Help:    "Duration of applying one fetched batch",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket, 10 buckets
	})

	groupsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftbbs_groups_loaded",
		Help: "The number of groups that have caught up to live",
	})
)

// Fanout delivers committed events to connected clients. Delivery is
// best-effort and must never block ingestion.
type Fanout interface {
	Publish(groupID string, events []models.Event)
}

// NoopFanout discards all events. Used by the poll command and in tests.
type NoopFanout struct{}

func (NoopFanout) Publish(string, []models.Event) {}

// Config holds the scheduler knobs.
type Config struct {
	// Interval is the base poll interval when feeds are producing full
	// batches.
	Interval time.Duration
	// IdleMultiplier stretches the interval when every feed came back
	// empty or partial, to avoid busy-polling an idle source.
	IdleMultiplier int
	// MaxIdleInterval caps the stretched interval.
	MaxIdleInterval time.Duration
	// BatchSize is the maximum number of records fetched per feed per
	// iteration.
	BatchSize int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Interval == 0 {
		out.Interval = 2 * time.Second
	}
	if out.IdleMultiplier < 2 {
		out.IdleMultiplier = 2
	}
	if out.MaxIdleInterval == 0 {
		out.MaxIdleInterval = 30 * time.Second
	}
	if out.BatchSize == 0 {
		out.BatchSize = 100
	}
	return out
}

// Pollster drives ingestion for all tracked groups: it fetches record
// batches per merged feed-role group, applies each record in its own
// transaction, advances cursors, and paces itself based on whether new
// content was found.
type Pollster struct {
	source chain.Source
	store  *db.Store
	fanout Fanout
	groups []*models.Group
	config Config

	// wake lets a node-side signal cut the idle sleep short
	wake <-chan struct{}
}

func New(source chain.Source, store *db.Store, fanout Fanout, groups []models.Group, config Config) *Pollster {
	tracked := make([]*models.Group, len(groups))
	for i := range groups {
		group := groups[i]
		tracked[i] = &group
	}
	return &Pollster{
		source: source,
		store:  store,
		fanout: fanout,
		groups: tracked,
		config: config.withDefaults(),
	}
}

// SetFanout replaces the event delivery hook.
func (p *Pollster) SetFanout(fanout Fanout) {
	p.fanout = fanout
}

// SetWakeChannel attaches an optional wake signal source.
func (p *Pollster) SetWakeChannel(wake <-chan struct{}) {
	p.wake = wake
}

// Run executes the polling loop until the context is cancelled. The stop
// signal takes effect between records, never mid-transaction.
func (p *Pollster) Run(ctx context.Context) error {
	// Restore persisted group status so a restarted process stays live
	for _, group := range p.groups {
		loaded, err := p.store.GetGroupLoaded(group.ID)
		if err != nil {
			return err
		}
		group.Loaded = loaded
		if loaded {
			groupsLoaded.Inc()
		}
	}

	interval := p.config.Interval
	for {
		anyFullBatch := false

		for _, group := range p.groups {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			full := p.pollGroup(ctx, group)
			anyFullBatch = anyFullBatch || full
		}

		if anyFullBatch {
			interval = p.config.Interval
		} else {
			interval = interval * time.Duration(p.config.IdleMultiplier)
			if interval > p.config.MaxIdleInterval {
				interval = p.config.MaxIdleInterval
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wakeChan():
			log.Debug("Wake signal received, polling immediately")
			interval = p.config.Interval
		case <-time.After(interval):
		}
	}
}

func (p *Pollster) wakeChan() <-chan struct{} {
	if p.wake != nil {
		return p.wake
	}
	// Nil channel blocks forever, leaving the timer in charge
	return nil
}

// pollGroup fetches and applies one batch per merged feed-role group.
// Returns true if any feed yielded a full batch (more content is likely
// waiting).
func (p *Pollster) pollGroup(ctx context.Context, group *models.Group) bool {
	anyFull := false
	allCaughtUp := true

	for _, roleGroup := range MergeRoles(group) {
		if ctx.Err() != nil {
			return anyFull
		}

		full, caughtUp := p.pollFeed(ctx, group, roleGroup)
		anyFull = anyFull || full
		allCaughtUp = allCaughtUp && caughtUp
	}

	// A group goes live once every role feed returned a partial batch;
	// from then on new notifications are created unread.
	if allCaughtUp && !group.Loaded {
		if err := p.store.SetGroupLoaded(group.ID, true); err != nil {
			log.Error("Error persisting group loaded state", err)
			return anyFull
		}
		group.Loaded = true
		groupsLoaded.Inc()
		log.WithFields(log.Fields{
			"group": group.ID,
		}).Info("Group caught up to live")
	}

	return anyFull
}

// pollFeed applies one batch for one merged feed-role group. Adapter and
// storage errors are logged, never fatal: the unchanged cursor makes the
// next iteration retry from the last good record.
func (p *Pollster) pollFeed(ctx context.Context, group *models.Group, roleGroup RoleGroup) (full bool, caughtUp bool) {
	cursor, _, err := p.store.GetCursor(group.ID, roleGroup.Key)
	if err != nil {
		log.Error("Error reading cursor", err)
		return false, false
	}

	records, _, err := p.source.Fetch(ctx, roleGroup.Endpoint, cursor, p.config.BatchSize)
	if err != nil {
		log.WithFields(log.Fields{
			"group": group.ID,
			"feed":  roleGroup.Key,
			"error": err,
		}).Error("Error fetching batch")
		return false, false
	}

	start := time.Now()
	applied := 0
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		if err := p.applyRecord(ctx, group, record); err != nil {
			log.WithFields(log.Fields{
				"group":  group.ID,
				"feed":   roleGroup.Key,
				"record": record.ID,
				"error":  err,
			}).Error("Error applying record, halting batch")
			recordsApplied.WithLabelValues("error").Inc()
			break
		}
		// Roles sharing this feed advance together, exactly once per record
		if err := p.store.AdvanceCursor(group.ID, roleGroup.Key, record.ID); err != nil {
			log.Error("Error advancing cursor", err)
			break
		}
		applied++
	}
	batchDuration.Observe(time.Since(start).Seconds())

	full = len(records) == p.config.BatchSize
	caughtUp = !full && applied == len(records)
	return full, caughtUp
}

// applyRecord applies one record inside one transaction: idempotency check,
// domain mutation, derived-counter recomputation and notification
// materialization all commit atomically. Fan-out runs strictly after commit
// so clients never observe an event before its state.
func (p *Pollster) applyRecord(ctx context.Context, group *models.Group, record models.ChainRecord) error {
	var committed []models.Event

	err := p.store.WithTx(ctx, func(tx *db.Tx) error {
		applied, events, err := applyContent(tx, group, record)
		if err != nil {
			return err
		}
		if !applied {
			recordsApplied.WithLabelValues("dropped").Inc()
			log.WithFields(log.Fields{
				"group":  group.ID,
				"record": record.ID,
			}).Warn("Record dropped over unresolved reference")
			return nil
		}
		recordsApplied.WithLabelValues("applied").Inc()

		committed, err = projectNotifications(tx, events, group.Loaded)
		return err
	})
	if err != nil {
		return err
	}

	if len(committed) > 0 {
		p.fanout.Publish(group.ID, committed)
	}
	return nil
}
