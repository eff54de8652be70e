package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/penglongli/gin-metrics/ginmetrics"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "metrics")

const (
	txSubmittedMetricsName   = "voce_transactions_submitted_total"
	txFailedMetricsName      = "voce_transactions_failed_total"
	eventsResolvedMetricName = "voce_events_resolved_total"
	xpAwardedMetricsName     = "voce_xp_awarded_total"
)

var initialized atomic.Bool

// Init registers the custom metrics on the gin-metrics monitor. Until it is called
// every increment is a no-op.
func Init() error {
	metrics := []*ginmetrics.Metric{
		{
			Type:        ginmetrics.Counter,
			Name:        txSubmittedMetricsName,
			Description: "Committed transactions per entry function",
			Labels:      []string{"function"},
		},
		{
			Type:        ginmetrics.Counter,
			Name:        txFailedMetricsName,
			Description: "Failed or aborted transactions per entry function",
			Labels:      []string{"function"},
		},
		{
			Type:        ginmetrics.Counter,
			Name:        eventsResolvedMetricName,
			Description: "Voting events resolved by the poller",
			Labels:      []string{},
		},
		{
			Type:        ginmetrics.Counter,
			Name:        xpAwardedMetricsName,
			Description: "XP awarded per action",
			Labels:      []string{"action"},
		},
	}
	for _, m := range metrics {
		if err := ginmetrics.GetMonitor().AddMetric(m); err != nil {
			log.Error(fmt.Sprintf("Error adding metric %s: %s", m.Name, err))
			return err
		}
	}
	initialized.Store(true)
	return nil
}

func TransactionSubmittedInc(function string) {
	inc(txSubmittedMetricsName, function)
}

func TransactionFailedInc(function string) {
	inc(txFailedMetricsName, function)
}

func EventResolvedInc() {
	inc(eventsResolvedMetricName)
}

// XPAwardedAdd adds amount to the awarded XP counter of action.
func XPAwardedAdd(action string, amount uint64) {
	if !initialized.Load() || amount == 0 {
		return
	}
	err := ginmetrics.GetMonitor().GetMetric(xpAwardedMetricsName).Add([]string{action}, float64(amount))
	if err != nil {
		log.Error(fmt.Sprintf("Error incrementing metric: %s", err))
	}
}

func inc(name string, labels ...string) {
	if !initialized.Load() {
		return
	}
	if labels == nil {
		labels = []string{}
	}
	if err := ginmetrics.GetMonitor().GetMetric(name).Inc(labels); err != nil {
		log.Error(fmt.Sprintf("Error incrementing metric: %s", err))
	}
}
