package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LocksCreated      prometheus.Counter
	LocksReleased     prometheus.Counter
	PartialReleases   prometheus.Counter
	LocksExtended     prometheus.Counter
	EmergencyReleases prometheus.Counter
	ExcessRecoveries  prometheus.Counter
	TransferFailures  prometheus.Counter
	ValueLocked       prometheus.Gauge
	OpenLocks         prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		LocksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_locks_created_total",
			Help: "Total number of locks created",
		}),
		LocksReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_locks_released_total",
			Help: "Total number of locks fully released at maturity",
		}),
		PartialReleases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_partial_releases_total",
			Help: "Total number of partial releases",
		}),
		LocksExtended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_locks_extended_total",
			Help: "Total number of lock extensions",
		}),
		EmergencyReleases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_emergency_releases_total",
			Help: "Total number of emergency releases bypassing maturity",
		}),
		ExcessRecoveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_excess_recoveries_total",
			Help: "Total number of successful excess balance recoveries",
		}),
		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vestry_vault_transfer_failures_total",
			Help: "Total number of treasury transfers that failed and were rolled back",
		}),
		ValueLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vestry_vault_value_locked",
			Help: "Current total value held across all open locks",
		}),
		OpenLocks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vestry_vault_open_locks",
			Help: "Current number of open locks",
		}),
	}
}

func (m *Metrics) IncrementLocksCreated()      { m.LocksCreated.Inc() }
func (m *Metrics) IncrementLocksReleased()     { m.LocksReleased.Inc() }
func (m *Metrics) IncrementPartialReleases()   { m.PartialReleases.Inc() }
func (m *Metrics) IncrementLocksExtended()     { m.LocksExtended.Inc() }
func (m *Metrics) IncrementEmergencyReleases() { m.EmergencyReleases.Inc() }
func (m *Metrics) IncrementExcessRecoveries()  { m.ExcessRecoveries.Inc() }
func (m *Metrics) IncrementTransferFailures()  { m.TransferFailures.Inc() }

func (m *Metrics) AddValueLocked(amount uint64) { m.ValueLocked.Add(float64(amount)) }
func (m *Metrics) SubValueLocked(amount uint64) { m.ValueLocked.Sub(float64(amount)) }
func (m *Metrics) IncrementOpenLocks()          { m.OpenLocks.Inc() }
func (m *Metrics) DecrementOpenLocks()          { m.OpenLocks.Dec() }
