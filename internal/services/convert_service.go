// Package services – ConversionService
//
// This file implements the conversion orchestrator. For every inbound request
// it decides between the dedup fast path (serve the already-converted result
// for the fingerprint) and queueing fresh work, and it owns the
// one-record-per-fingerprint invariant: whatever races happen around the
// queue, at most one insert ever wins and everyone is served the winner.
//
// The orchestrator itself does no I/O beyond the store lookup. Everything
// blocking — the transform, the insert, result delivery — happens inside the
// queued job, which the queue runs strictly one at a time.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/slowjam/go-vinyl-backend/internal/audio"
	"github.com/slowjam/go-vinyl-backend/internal/callback"
	"github.com/slowjam/go-vinyl-backend/internal/domain"
	"github.com/slowjam/go-vinyl-backend/internal/gateway"
	"github.com/slowjam/go-vinyl-backend/internal/queue"
)

var submissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vinyl_submissions_total",
		Help: "Conversion submissions by outcome (cache_hit, queued, too_big).",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(submissionsTotal)
}

// FailureTransform and FailureTooBig are the typed failure reasons delivered
// to users when a queued conversion cannot produce a result.
const (
	FailureTransform = "transform_failed"
	FailureTooBig    = "file_too_big"
)

// ConversionRequest is one inbound conversion submission, already parsed by
// the transport layer.
type ConversionRequest struct {
	// Fingerprint is the stable content identity of the source media.
	Fingerprint string
	// SourcePath is the local path of the downloaded source file.
	SourcePath string
	// SourceSize is the source file size in bytes, as observed by the
	// transport; zero means unknown.
	SourceSize int64
	// OwnerID identifies the requesting user.
	OwnerID string
	// DisplayName is an optional human-readable name for notifications.
	DisplayName string
}

// SubmitOutcome reports how a submission was handled: served from cache or
// queued at a position.
type SubmitOutcome struct {
	// Cached is the existing record when the fingerprint was already
	// converted; nil when the request was queued.
	Cached *domain.Match
	// Queued is true when a job was enqueued.
	Queued bool
	// Position is the advisory 1-based queue position of the new job.
	Position int
}

// TaskQueue is the queue contract the orchestrator needs. Satisfied by
// *queue.Queue; tests substitute a synchronous fake.
type TaskQueue interface {
	Enqueue(job queue.Job) int
	Size() int
}

// ConversionService decides between cached results and fresh conversion work.
type ConversionService struct {
	// Matches is the authority on match records.
	Matches *MatchService
	// Queue serializes conversion jobs.
	Queue TaskQueue
	// Transformer produces the converted file.
	Transformer audio.Transformer
	// Notifier delivers queued-job outcomes back to users.
	Notifier gateway.Notifier
	// MaxSourceBytes rejects sources above this size before any work is
	// queued; zero disables the cap.
	MaxSourceBytes int64
	// CallbackMaxBytes caps rendered callback tokens.
	CallbackMaxBytes int
	// Log receives job diagnostics.
	Log zerolog.Logger
}

// Submit handles one conversion request.
//
// Fast path: when a record already exists for the fingerprint, the cached
// result is returned synchronously — no queueing, no recomputation. This is
// the single most important performance property of the system.
//
// Miss: the request is queued and the advisory position returned. The actual
// transform, insert, and delivery happen later on the worker.
func (s *ConversionService) Submit(ctx context.Context, req ConversionRequest) (SubmitOutcome, error) {
	if req.Fingerprint == "" {
		return SubmitOutcome{}, ErrInvalidCallback
	}
	if s.MaxSourceBytes > 0 && req.SourceSize > s.MaxSourceBytes {
		submissionsTotal.WithLabelValues("too_big").Inc()
		return SubmitOutcome{}, ErrSourceTooBig
	}

	m, err := s.Matches.Lookup(ctx, req.Fingerprint)
	switch {
	case err == nil:
		submissionsTotal.WithLabelValues("cache_hit").Inc()
		return SubmitOutcome{Cached: m}, nil
	case errors.Is(err, ErrMatchNotFound):
		// fresh source, fall through to queueing
	default:
		return SubmitOutcome{}, err
	}

	job := queue.Job{
		ID: uuid.NewString(),
		Run: func(jobCtx context.Context) error {
			return s.runJob(jobCtx, req)
		},
	}
	pos := s.Queue.Enqueue(job)
	submissionsTotal.WithLabelValues("queued").Inc()
	return SubmitOutcome{Queued: true, Position: pos}, nil
}

// QueueDepth reports the current queue depth, including the in-flight job.
func (s *ConversionService) QueueDepth() int {
	return s.Queue.Size()
}

// runJob executes one queued conversion on the worker goroutine.
//
// Because jobs run strictly one at a time, a duplicate fingerprint queued
// behind the original sees its record on the re-check below and skips the
// transform entirely; the requester still gets the shared result. The insert
// conflict branch stays as the last line of defense for writes that slip in
// through any other path.
func (s *ConversionService) runJob(ctx context.Context, req ConversionRequest) error {
	lg := s.Log.With().Str("fingerprint", req.Fingerprint).Str("owner_id", req.OwnerID).Logger()

	if m, err := s.Matches.Lookup(ctx, req.Fingerprint); err == nil {
		lg.Debug().Int64("match_id", m.ID).Msg("converted while queued, serving existing record")
		return s.deliverSuccess(ctx, req, m)
	}

	derived, err := s.Transformer.Transform(ctx, req.SourcePath)
	if err != nil {
		lg.Warn().Err(err).Msg("transform failed")
		s.deliverFailure(ctx, req, FailureTransform)
		return fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}

	m, err := s.Matches.Insert(ctx, req.Fingerprint, derived, req.OwnerID)
	if errors.Is(err, ErrDuplicateMatch) {
		// A concurrent duplicate won the race. Discard the fresh artifact and
		// serve the winner's record.
		if rmErr := os.Remove(derived); rmErr != nil {
			lg.Warn().Err(rmErr).Str("path", derived).Msg("could not discard duplicate artifact")
		}
		m, err = s.Matches.Lookup(ctx, req.Fingerprint)
		if err != nil {
			return fmt.Errorf("insert conflicted but winner unreadable: %w", err)
		}
		lg.Info().Int64("match_id", m.ID).Msg("duplicate conversion lost insert race, serving winner")
		return s.deliverSuccess(ctx, req, m)
	}
	if err != nil {
		return fmt.Errorf("persist match: %w", err)
	}

	lg.Info().Int64("match_id", m.ID).Str("derived_ref", m.DerivedRef).Msg("conversion recorded")
	return s.deliverSuccess(ctx, req, m)
}

// deliverSuccess renders the share control from the record and hands the
// result to the gateway. Delivery failure marks the job failed; the record is
// already persisted and stays served on future submissions.
func (s *ConversionService) deliverSuccess(ctx context.Context, req ConversionRequest, m *domain.Match) error {
	ctl, err := callback.ShareControl(m.Fingerprint, m.Private, s.CallbackMaxBytes)
	if err != nil {
		return fmt.Errorf("render share control: %w", err)
	}
	res := gateway.Result{
		RequestID:  req.Fingerprint,
		OwnerID:    req.OwnerID,
		DerivedRef: m.DerivedRef,
		Control:    &ctl,
	}
	if err := s.Notifier.DeliverResult(ctx, res); err != nil {
		return fmt.Errorf("deliver result: %w", err)
	}
	return nil
}

// deliverFailure reports a typed failure reason to the requester. Delivery
// problems are logged and swallowed; the job already failed.
func (s *ConversionService) deliverFailure(ctx context.Context, req ConversionRequest, reason string) {
	res := gateway.Result{
		RequestID: req.Fingerprint,
		OwnerID:   req.OwnerID,
		Failure:   reason,
	}
	if err := s.Notifier.DeliverResult(ctx, res); err != nil {
		s.Log.Error().
			Str("fingerprint", req.Fingerprint).
			Err(err).
			Msg("failure notice undeliverable")
	}
}
