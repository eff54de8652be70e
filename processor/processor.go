package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/rewards"
	"github.com/safwentrabelsi/voce/types"
	"github.com/sirupsen/logrus"
)

type Processor interface {
	Run(ctx context.Context)
}

type Awarder interface {
	Award(ctx context.Context, address string, action gamification.Action) (*rewards.AwardResult, error)
}

type ResolutionStore interface {
	IsResolved(ctx context.Context, eventID uint64) (bool, error)
	SaveResolution(ctx context.Context, resolution types.Resolution) error
}

type processor struct {
	store       ResolutionStore
	ledger      Awarder
	dataChannel <-chan *types.ResolutionMsg
	errorChan   chan<- error
	now         func() time.Time
}

var log = logrus.WithField("module", "processor")

func NewProcessor(store ResolutionStore, ledger Awarder, dataChannel <-chan *types.ResolutionMsg, errorChan chan<- error) Processor {
	return &processor{
		store:       store,
		ledger:      ledger,
		dataChannel: dataChannel,
		errorChan:   errorChan,
		now:         time.Now,
	}
}

func (p *processor) Run(ctx context.Context) {
	log.Info("Starting Processor")
	for {
		select {
		case <-ctx.Done():
			log.Info("Processor stopping due to context cancellation")
			return
		case msg := <-p.dataChannel:
			if msg == nil {
				continue
			}
			log.Infof("Received resolution of event %d", msg.Event.ID)
			if err := p.processResolution(ctx, msg); err != nil {
				log.WithError(err).Error("Failed to process resolution")
				select {
				case p.errorChan <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// processResolution settles the XP of every revealed participant once per event.
// The resolution is recorded before any award so that a failed write leaves
// nothing credited and a later retry starts clean. Awards that fail afterwards
// are returned and not retried.
func (p *processor) processResolution(ctx context.Context, msg *types.ResolutionMsg) error {
	ev := msg.Event
	resolved, err := p.store.IsResolved(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to check resolution of event %d: %w", ev.ID, err)
	}
	if resolved {
		log.Debugf("Event %d already settled", ev.ID)
		return nil
	}

	err = p.store.SaveResolution(ctx, types.Resolution{
		EventID:       ev.ID,
		WinningOption: ev.WinningOption,
		TxHash:        msg.TxHash,
		ResolvedAt:    p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save resolution of event %d: %w", ev.ID, err)
	}

	var errs []error
	settled := 0
	for _, part := range msg.Participants {
		if !part.Revealed {
			continue
		}
		actions := []gamification.Action{gamification.ActionRevealVote, gamification.ActionWrongPrediction}
		if part.Choice == ev.WinningOption {
			actions[1] = gamification.ActionCorrectPrediction
		}
		for _, action := range actions {
			if _, err := p.ledger.Award(ctx, part.Address, action); err != nil {
				errs = append(errs, fmt.Errorf("award %s to %s for event %d: %w", action, part.Address, ev.ID, err))
			}
		}
		settled++
	}

	log.WithFields(logrus.Fields{
		"event":        ev.ID,
		"winner":       ev.WinningOption,
		"participants": len(msg.Participants),
		"settled":      settled,
	}).Info("Resolution processed")
	return errors.Join(errs...)
}
