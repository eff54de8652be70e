package poller

import (
	"context"
	"time"

	"github.com/safwentrabelsi/voce/metrics"
	"github.com/safwentrabelsi/voce/types"
	"github.com/safwentrabelsi/voce/voting"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "poller")

// EventResolver is the part of the voting service the poller drives.
type EventResolver interface {
	ListEvents(ctx context.Context) ([]types.VotingEvent, error)
	GetEvent(ctx context.Context, eventID uint64) (*types.VotingEvent, error)
	ResolveEvent(ctx context.Context, eventID uint64) (string, error)
	GetParticipantChoices(ctx context.Context, eventID uint64) ([]types.Participant, error)
}

type ResolutionStore interface {
	IsResolved(ctx context.Context, eventID uint64) (bool, error)
}

type Config interface {
	GetInterval() time.Duration
}

// Poller periodically resolves events whose reveal deadline has passed and
// hands every resolved event to the processor.
type Poller struct {
	events   EventResolver
	store    ResolutionStore
	dataChan chan<- *types.ResolutionMsg
	cfg      Config
	now      func() time.Time
}

func NewPoller(events EventResolver, dataChan chan<- *types.ResolutionMsg, store ResolutionStore, cfg Config) *Poller {
	return &Poller{
		events:   events,
		store:    store,
		dataChan: dataChan,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. The first pass runs immediately.
func (p *Poller) Run(ctx context.Context) {
	log.Infof("Starting Poller, interval %s", p.cfg.GetInterval())
	ticker := time.NewTicker(p.cfg.GetInterval())
	defer ticker.Stop()

	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, stopping Poller")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	events, err := p.events.ListEvents(ctx)
	if err != nil {
		log.WithError(err).Error("Error listing events")
		return
	}

	now := p.now()
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		switch voting.PhaseAt(ev, now) {
		case voting.PhaseAwaitingResolution:
			hash, err := p.events.ResolveEvent(ctx, ev.ID)
			if err != nil {
				// retried on the next tick
				log.WithError(err).Errorf("Error resolving event %d", ev.ID)
				continue
			}
			log.WithField("hash", hash).Infof("Resolved event %d", ev.ID)
			metrics.EventResolvedInc()
			p.emit(ctx, ev.ID, hash)
		case voting.PhaseResolved:
			// resolved elsewhere, or settled before a restart
			resolved, err := p.store.IsResolved(ctx, ev.ID)
			if err != nil {
				log.WithError(err).Errorf("Error checking resolution of event %d", ev.ID)
				continue
			}
			if !resolved {
				p.emit(ctx, ev.ID, "")
			}
		}
	}
}

func (p *Poller) emit(ctx context.Context, eventID uint64, txHash string) {
	ev, err := p.events.GetEvent(ctx, eventID)
	if err != nil {
		log.WithError(err).Errorf("Error reading resolved event %d", eventID)
		return
	}
	if ev.Status != types.EventResolved {
		log.Warnf("Event %d is not resolved on chain yet", eventID)
		return
	}
	participants, err := p.events.GetParticipantChoices(ctx, eventID)
	if err != nil {
		log.WithError(err).Errorf("Error reading participants of event %d", eventID)
		return
	}

	select {
	case p.dataChan <- &types.ResolutionMsg{Event: *ev, TxHash: txHash, Participants: participants}:
	case <-ctx.Done():
	}
}
