// Package loghooks is a slog-backed memshard.Hooks implementation with
// sampling for floody events and key redaction.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/fddayan/memshard"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	PumpErrorEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	pumpErrCtr atomic.Uint64
}

var _ memshard.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) sampled(ctr *atomic.Uint64, every uint64) bool {
	if every <= 1 {
		return true
	}
	return ctr.Add(1)%every == 1
}

func (h *Hooks) PumpError(err error) {
	if !h.sampled(&h.pumpErrCtr, h.opts.PumpErrorEvery) {
		return
	}
	h.l.Warn("memshard: io pump error", slog.Any("err", err))
}

func (h *Hooks) KeyMismatch(requested, received string) {
	h.l.Error("memshard: response key does not match request",
		slog.String("requested", h.redact(requested)),
		slog.String("received", h.redact(received)))
}

func (h *Hooks) EnqueueRejected(addr string, err error) {
	h.l.Warn("memshard: enqueue rejected",
		slog.String("addr", addr), slog.Any("err", err))
}

func (h *Hooks) ShutdownAbandoned(count int) {
	h.l.Warn("memshard: waiters failed at shutdown", slog.Int("count", count))
}
