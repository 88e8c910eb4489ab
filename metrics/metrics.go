// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics is the concrete, Prometheus-backed implementation of
// the two metrics streams the retransmit core emits: the aggregate
// "retransmit-stage" counters (stats.Sink) and the per-slot
// "retransmit-stage-slot-stats" records (slotstats.Sink).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/turbine/slotstats"
	"github.com/luxfi/turbine/stats"
)

const namespace = "retransmit_stage"

// Sink registers and updates the retransmit core's Prometheus metrics.
// It implements both stats.Sink and slotstats.Sink.
type Sink struct {
	totalBatches     prometheus.Counter
	numShreds        prometheus.Counter
	numShredsSkipped prometheus.Counter
	unknownLeader    prometheus.Counter
	addrsFailed      prometheus.Counter
	numNodes         prometheus.Counter
	retransmitMicros prometheus.Counter
	turbineMicros    prometheus.Counter

	slotElapsedMillis prometheus.Histogram
	slotShredsTotal   prometheus.Counter
	slotNodesTotal    prometheus.Counter
}

// NewSink creates a Sink and registers its collectors with reg.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		totalBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "total_batches", Help: "Number of batches drained from the intake channel.",
		}),
		numShreds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "num_shreds", Help: "Number of shreds seen.",
		}),
		numShredsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "num_shreds_skipped", Help: "Number of shreds dropped by the deduper.",
		}),
		unknownLeader: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unknown_shred_slot_leader", Help: "Shreds skipped for lacking a known slot leader.",
		}),
		addrsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "num_addrs_failed", Help: "Destination addresses that failed to send.",
		}),
		numNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "num_nodes", Help: "Successful send targets.",
		}),
		retransmitMicros: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "retransmit_total_micros", Help: "Cumulative microseconds spent sending.",
		}),
		turbineMicros: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "compute_turbine_total_micros", Help: "Cumulative microseconds computing peer sets.",
		}),
		slotElapsedMillis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "slot_stats_elapsed_millis", Help: "Elapsed time between a slot's first and last retransmit.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		slotShredsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slot_stats_shreds_total", Help: "Total shreds retransmitted per evicted slot.",
		}),
		slotNodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slot_stats_nodes_total", Help: "Total downstream addresses targeted per evicted slot.",
		}),
	}
	collectors := []prometheus.Collector{
		s.totalBatches, s.numShreds, s.numShredsSkipped, s.unknownLeader,
		s.addrsFailed, s.numNodes, s.retransmitMicros, s.turbineMicros,
		s.slotElapsedMillis, s.slotShredsTotal, s.slotNodesTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// EmitAggregate implements stats.Sink.
func (s *Sink) EmitAggregate(snap stats.Snapshot) {
	s.totalBatches.Add(float64(snap.TotalBatches))
	s.numShreds.Add(float64(snap.NumShreds))
	s.numShredsSkipped.Add(float64(snap.NumShredsSkipped))
	s.unknownLeader.Add(float64(snap.UnknownShredSlotLeader))
	s.addrsFailed.Add(float64(snap.NumAddrsFailed))
	s.numNodes.Add(float64(snap.NumNodes))
	s.retransmitMicros.Add(float64(snap.RetransmitTotalMicros))
	s.turbineMicros.Add(float64(snap.ComputeTurbineMicros))
}

// EmitSlotStats implements slotstats.Sink.
func (s *Sink) EmitSlotStats(rec slotstats.EvictedRecord) {
	s.slotElapsedMillis.Observe(float64(rec.ElapsedMillis))
	s.slotShredsTotal.Add(float64(rec.TotalReceived))
	s.slotNodesTotal.Add(float64(rec.TotalSent))
}
