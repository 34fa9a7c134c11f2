package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// ErrNoDishes is returned when a run finishes without a single usable item.
var ErrNoDishes = errors.New("no dishes detected, retry with a clearer photo")

// ErrModelCall is returned when every request variant failed before any item
// was accumulated.
var ErrModelCall = errors.New("model call failed")

// ErrNoCallers is returned by New when no request variant is configured.
var ErrNoCallers = errors.New("at least one model caller is required")

// ErrEmptyImage is returned when Extract receives no image bytes.
var ErrEmptyImage = errors.New("image is empty")

var errNoText = errors.New("no text in model reply")

// errNothingRead marks a reply that arrived but held neither JSON nor any
// prose dish. It is an answer, not a transport failure.
var errNothingRead = errors.New("reply names no dishes")

const (
	DefaultMaxBatches       = 6
	DefaultMaxItemsPerBatch = 12
	DefaultSeenWindow       = 40
)

// Image is a menu photo handed to the model.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is one model call.
type Request struct {
	Prompt string
	Image  Image
	// Round is 0 for the single-pass request and 1.. for batch rounds.
	Round  int
	Schema *Schema
}

// Usage counts tokens spent by one or more model calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// Add accumulates o into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// Envelope is a model reply as decoded JSON plus transport metadata.
type Envelope struct {
	Body      any
	Usage     Usage
	Truncated bool
}

// Caller is one request variant against a vision model.
type Caller interface {
	Label() string
	Call(ctx context.Context, req Request) (*Envelope, error)
}

// Result is the outcome of one extraction run.
type Result struct {
	Items       []menu.Item `json:"items"`
	GeneratedAt time.Time   `json:"generated_at"`
	Rounds      int         `json:"rounds"`
	Usage       Usage       `json:"usage"`
	// Partial is set when a later round failed on every variant and the
	// items gathered so far were returned instead.
	Partial bool `json:"partial"`
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxBatches caps the number of model rounds per run. The single-pass
// request counts as one of them and is skipped when the cap is 1.
func WithMaxBatches(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBatches = n
		}
	}
}

// WithMaxItemsPerBatch sets how many new items each round asks for.
func WithMaxItemsPerBatch(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxItems = n
		}
	}
}

// WithSeenWindow sets how many accepted names are listed in each prompt.
func WithSeenWindow(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.seenWindow = n
		}
	}
}

// WithSinglePass enables a sectioned whole-menu request before batching.
func WithSinglePass(on bool) Option {
	return func(e *Extractor) { e.singlePass = on }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source used for Result.GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// Extractor runs batched menu extraction against an ordered list of request
// variants. It holds configuration only and is safe for concurrent use.
type Extractor struct {
	callers    []Caller
	maxBatches int
	maxItems   int
	seenWindow int
	singlePass bool
	log        *zap.Logger
	now        func() time.Time
}

// New creates an Extractor. Callers are tried in order within each round.
func New(callers []Caller, opts ...Option) (*Extractor, error) {
	if len(callers) == 0 {
		return nil, ErrNoCallers
	}
	e := &Extractor{
		callers:    callers,
		maxBatches: DefaultMaxBatches,
		maxItems:   DefaultMaxItemsPerBatch,
		seenWindow: DefaultSeenWindow,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type state int

const (
	stateRequesting state = iota
	stateParsing
	stateMerging
	stateDone
)

// reply is the usable content of one round.
type reply struct {
	candidates []menu.Candidate
	flags      flags
	stage      string
}

// run is the per-call batch state. It never outlives Extract.
type run struct {
	id       string
	seen     map[string]struct{}
	names    []string
	accepted []menu.Candidate
	usage    Usage
	rounds   int
	partial  bool
}

func (r *run) merge(cands []menu.Candidate) int {
	added := 0
	for _, c := range cands {
		key := c.Key()
		if key == "" {
			continue
		}
		if _, dup := r.seen[key]; dup {
			continue
		}
		r.seen[key] = struct{}{}
		r.names = append(r.names, c.Name)
		r.accepted = append(r.accepted, c)
		added++
	}
	return added
}

func (r *run) window(n int) []string {
	if n == 0 {
		return nil
	}
	if len(r.names) <= n {
		return r.names
	}
	return r.names[len(r.names)-n:]
}

// Extract pulls every dish it can from img. Rounds run sequentially; each
// round tries the callers in order until one returns usable output.
func (e *Extractor) Extract(ctx context.Context, img Image) (*Result, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	r := &run{id: uuid.NewString(), seen: map[string]struct{}{}}
	log := e.log.With(zap.String("run", r.id))

	round, last := 1, e.maxBatches
	if e.singlePass && e.maxBatches > 1 {
		round, last = 0, e.maxBatches-1
	}
	variant := 0
	var (
		req     Request
		env     *Envelope
		got     reply
		callErr []error
		// answered is set once any variant in the round replied with
		// readable text, even if it named no dishes.
		answered bool
	)

	st := stateRequesting
	for st != stateDone {
		switch st {
		case stateRequesting:
			if err := ctx.Err(); err != nil {
				if len(r.accepted) == 0 {
					return nil, fmt.Errorf("extract: %w", err)
				}
				r.partial = true
				st = stateDone
				continue
			}
			if variant == 0 {
				req = e.request(round, img, r)
			}
			if variant >= len(e.callers) {
				if round == 0 {
					// single pass gave nothing usable; fall back to batches
					round, variant, callErr, answered = 1, 0, nil, false
					continue
				}
				if answered {
					log.Info("model read no further dishes", zap.Int("round", round))
					st = stateDone
					continue
				}
				if len(r.accepted) == 0 {
					return nil, fmt.Errorf("%w: %w", ErrModelCall, errors.Join(callErr...))
				}
				log.Warn("round failed on every variant, returning partial menu",
					zap.Int("round", round), zap.Int("items", len(r.accepted)))
				r.partial = true
				st = stateDone
				continue
			}

			caller := e.callers[variant]
			out, err := caller.Call(ctx, req)
			if err != nil {
				log.Warn("model call failed",
					zap.Int("round", round),
					zap.String("variant", caller.Label()),
					zap.String("prompt", promptHash(req.Prompt)),
					zap.Error(err))
				callErr = append(callErr, fmt.Errorf("%s: %w", caller.Label(), err))
				variant++
				continue
			}
			r.usage.Add(out.Usage)
			env = out
			st = stateParsing

		case stateParsing:
			rep, err := interpret(env)
			if err != nil {
				if errors.Is(err, errNothingRead) {
					answered = true
				}
				label := e.callers[variant].Label()
				log.Warn("unusable model reply",
					zap.Int("round", round),
					zap.String("variant", label),
					zap.String("prompt", promptHash(req.Prompt)),
					zap.Error(err))
				callErr = append(callErr, fmt.Errorf("%s: %w", label, err))
				variant++
				st = stateRequesting
				continue
			}
			got = rep
			st = stateMerging

		case stateMerging:
			added := r.merge(got.candidates)
			r.rounds++
			log.Debug("round merged",
				zap.Int("round", round),
				zap.String("variant", e.callers[variant].Label()),
				zap.String("stage", got.stage),
				zap.Int("returned", len(got.candidates)),
				zap.Int("added", added),
				zap.Bool("has_more", got.flags.hasMore),
				zap.Bool("truncated", got.flags.truncated))

			st = next(round, last, added, got.flags)
			round++
			variant, callErr, answered = 0, nil, false
		}
	}

	items := menu.Normalize(r.accepted)
	if len(items) == 0 {
		return nil, ErrNoDishes
	}
	log.Info("menu extracted",
		zap.Int("items", len(items)),
		zap.Int("rounds", r.rounds),
		zap.Bool("partial", r.partial),
		zap.Int("total_tokens", r.usage.TotalTokens))

	return &Result{
		Items:       items,
		GeneratedAt: e.now().UTC(),
		Rounds:      r.rounds,
		Usage:       r.usage,
		Partial:     r.partial,
	}, nil
}

// next applies the termination rules after a merged round. last is the
// highest batch round the run may issue.
func next(round, last, added int, f flags) state {
	if round == 0 {
		if added > 0 {
			return stateDone
		}
		return stateRequesting
	}
	switch {
	case added == 0:
		return stateDone
	case !f.hasMore && !f.truncated:
		return stateDone
	case round >= last:
		return stateDone
	}
	return stateRequesting
}

func (e *Extractor) request(round int, img Image, r *run) Request {
	if round == 0 {
		return Request{Prompt: SinglePassPrompt(), Image: img, Round: 0, Schema: SectionsSchema}
	}
	return Request{
		Prompt: BatchPrompt(round, e.maxItems, r.window(e.seenWindow)),
		Image:  img,
		Round:  round,
		Schema: BatchSchema,
	}
}

// interpret runs text extraction, lenient parsing and collection on one
// reply. Replies yielding neither JSON nor prose items are unusable.
func interpret(env *Envelope) (reply, error) {
	if env == nil {
		return reply{}, errNoText
	}
	text, ok := ExtractText(env.Body)
	if !ok {
		return reply{}, errNoText
	}
	truncated := env.Truncated || IsTruncated(env.Body)

	parsed, err := ParseLenient(text)
	if err != nil {
		if !errors.Is(err, ErrUnparseable) {
			return reply{}, err
		}
		cands := ItemsFromText(text)
		if len(cands) == 0 {
			return reply{}, fmt.Errorf("%w: %w", errNothingRead, err)
		}
		return reply{candidates: cands, flags: flags{truncated: truncated}, stage: "prose"}, nil
	}

	f := flagsOf(parsed.Value)
	f.truncated = f.truncated || truncated
	return reply{candidates: Collect(parsed.Value), flags: f, stage: parsed.Stage.String()}, nil
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:6])
}
