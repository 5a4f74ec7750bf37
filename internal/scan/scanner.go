// Package scan drives the polling loop: fetch pairs, extract features, score,
// classify, decide, persist, alert, retrain, sleep. One logical worker runs
// the whole cycle; nothing in here fans out.
package scan

import (
	"context"
	"errors"
	"time"

	"pumpwatch/internal/alert"
	"pumpwatch/internal/cfg"
	"pumpwatch/internal/features"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/metrics"
	"pumpwatch/internal/ml"
	"pumpwatch/internal/score"
	"pumpwatch/internal/storage"

	"github.com/rs/zerolog/log"
)

// Source abstracts the market-data feed.
type Source interface {
	FetchPairs(ctx context.Context) ([]feed.Pair, error)
}

// Classifier is the slice of the ml service the scanner drives.
type Classifier interface {
	Predict(v features.Vector) int
	Retrain(rows []storage.TrainingRow) error
}

// Labeler assigns the training label for an emitted signal. The default marks
// every emission as pumped, which mirrors the historical behavior but cannot
// produce negative examples; swap it once a ground-truth source exists.
type Labeler func(sig storage.Signal, v features.Vector) int

// AlwaysPumped is the default Labeler.
func AlwaysPumped(storage.Signal, features.Vector) int { return 1 }

// state names the phases of one scan cycle.
type state int

const (
	stateFetching state = iota
	stateProcessing
	stateRetraining
	stateSleeping
)

func (s state) String() string {
	switch s {
	case stateFetching:
		return "FETCHING"
	case stateProcessing:
		return "PROCESSING"
	case stateRetraining:
		return "RETRAINING"
	case stateSleeping:
		return "SLEEPING"
	default:
		return "UNKNOWN"
	}
}

// Scanner owns one scan loop.
type Scanner struct {
	cfg        cfg.Settings
	source     Source
	classifier Classifier
	store      *storage.Store
	notifier   alert.Notifier
	metrics    *metrics.Metrics
	labeler    Labeler
	state      state
}

// New wires a scanner from its collaborators. A nil labeler falls back to
// AlwaysPumped.
func New(c cfg.Settings, source Source, classifier Classifier, store *storage.Store, notifier alert.Notifier, m *metrics.Metrics, labeler Labeler) *Scanner {
	if labeler == nil {
		labeler = AlwaysPumped
	}
	return &Scanner{
		cfg:        c,
		source:     source,
		classifier: classifier,
		store:      store,
		notifier:   notifier,
		metrics:    m,
		labeler:    labeler,
	}
}

// Run loops until ctx is canceled. No error from fetching, processing, or
// retraining escapes the loop; failures shorten the sleep to the error
// backoff and the cycle restarts.
func (s *Scanner) Run(ctx context.Context) {
	log.Info().
		Dur("interval", s.cfg.ScanInterval).
		Int("pair_cap", s.cfg.PairCap).
		Float64("liquidity_floor", s.cfg.LiquidityFloor).
		Msg("scanner started")

	for {
		pairs, err := s.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.metrics.FetchErrors.Inc()
			log.Warn().Err(err).Dur("backoff", s.cfg.ErrorBackoff).Msg("feed fetch failed")
			if !s.sleep(ctx, s.cfg.ErrorBackoff) {
				break
			}
			continue
		}

		emitted := s.process(ctx, pairs)
		s.retrain()

		s.metrics.ScansTotal.Inc()
		log.Info().Int("pairs", len(pairs)).Int("signals", emitted).Msg("scan complete")

		if !s.sleep(ctx, s.cfg.ScanInterval) {
			break
		}
	}

	log.Info().Msg("scanner stopped")
}

// RunCycle executes exactly one fetch/process/retrain pass. Exposed so the
// dashboard-less tooling and tests can drive cycles directly.
func (s *Scanner) RunCycle(ctx context.Context) (emitted int, err error) {
	pairs, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}
	emitted = s.process(ctx, pairs)
	s.retrain()
	return emitted, nil
}

func (s *Scanner) fetch(ctx context.Context) ([]feed.Pair, error) {
	s.setState(stateFetching)

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	pairs, err := s.source.FetchPairs(fetchCtx)
	if err != nil {
		return nil, err
	}
	s.metrics.FetchLatency.Observe(time.Since(start).Seconds())
	return pairs, nil
}

func (s *Scanner) process(ctx context.Context, pairs []feed.Pair) int {
	s.setState(stateProcessing)

	if len(pairs) > s.cfg.PairCap {
		pairs = pairs[:s.cfg.PairCap]
	}

	emitted := 0
	for _, p := range pairs {
		if s.processPair(ctx, p) {
			emitted++
		}
	}
	return emitted
}

// processPair handles one record end to end. A failure here, including a
// panic from an unexpected record shape, skips only this record.
func (s *Scanner) processPair(ctx context.Context, p feed.Pair) (emitted bool) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ErrorsTotal.Inc()
			log.Warn().Interface("panic", r).Str("pair", p.PairAddress).Msg("pair processing failed")
			emitted = false
		}
	}()

	s.metrics.PairsProcessed.Inc()

	vec, ok := features.Extract(p, s.cfg.LiquidityFloor)
	if !ok {
		s.metrics.PairsSkipped.Inc()
		return false
	}

	heuristic := score.Heuristic(vec)
	probability := s.classifier.Predict(vec)

	if !score.Decide(heuristic, probability, s.cfg.ScoreThreshold, s.cfg.ProbThreshold) {
		return false
	}

	sig := storage.Signal{
		Token:        features.Symbol(p),
		Chain:        features.Chain(p),
		Price:        features.Price(p),
		Score:        heuristic,
		Probability:  probability,
		Momentum:     score.Label(probability),
		LiquidityUSD: vec.Liq,
		Volume24h:    features.Volume24h(p),
		URL:          p.URL,
		Timestamp:    time.Now().UTC(),
	}

	if err := s.store.AppendSignal(sig); err != nil {
		s.metrics.ErrorsTotal.Inc()
		log.Error().Err(err).Str("token", sig.Token).Msg("signal append failed")
	}
	if err := s.store.AppendTraining(storage.TrainingRow{Vector: vec, Pumped: s.labeler(sig, vec)}); err != nil {
		s.metrics.ErrorsTotal.Inc()
		log.Error().Err(err).Str("token", sig.Token).Msg("training append failed")
	}

	// Delivery is fire and forget: the rows above are already committed.
	if err := s.notifier.Send(ctx, sig); err != nil {
		s.metrics.AlertFailures.Inc()
		log.Warn().Err(err).Str("token", sig.Token).Msg("alert delivery failed")
	} else {
		log.Info().
			Str("token", sig.Token).
			Str("chain", sig.Chain).
			Int("score", sig.Score).
			Int("probability", sig.Probability).
			Str("momentum", string(sig.Momentum)).
			Msg("signal sent")
	}

	s.metrics.SignalsEmitted.Inc()
	return true
}

// retrain runs once per cycle, after processing. Insufficient data keeps the
// prior model; any other failure is logged and the cycle continues.
func (s *Scanner) retrain() {
	s.setState(stateRetraining)

	rows, err := s.store.TrainingRows()
	if err != nil {
		s.metrics.ErrorsTotal.Inc()
		log.Warn().Err(err).Msg("training log read failed, skipping retrain")
		return
	}
	s.metrics.TrainingRows.Set(float64(len(rows)))

	switch err := s.classifier.Retrain(rows); {
	case errors.Is(err, ml.ErrInsufficientData):
		log.Debug().Int("rows", len(rows)).Msg("not enough training rows, model unchanged")
	case err != nil:
		s.metrics.ErrorsTotal.Inc()
		log.Warn().Err(err).Msg("retrain failed, model unchanged")
	}
}

// sleep blocks for d or until ctx is canceled. It reports false on cancel.
func (s *Scanner) sleep(ctx context.Context, d time.Duration) bool {
	s.setState(stateSleeping)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Scanner) setState(next state) {
	if s.state != next {
		log.Debug().Stringer("from", s.state).Stringer("to", next).Msg("scan state")
		s.state = next
	}
}
