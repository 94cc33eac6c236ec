// Package orchestrator queues AI requests, routes them to registered models,
// executes them on a worker pool and keeps the responses for pickup.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/common/metrics"
	"crm-ai-orchestrator/pkg/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidRequest   = errors.New("invalid AI request")
	ErrNoModelAvailable = errors.New("no model available")
	ErrHandlerFailed    = errors.New("handler failed")
	ErrRequestTimeout   = errors.New("request timeout")
	ErrQueueFull        = errors.New("queue full")
	ErrDuplicateRequest = errors.New("duplicate request id")
	ErrClosed           = errors.New("orchestrator closed")
	ErrResponseNotFound = errors.New("response not found")
)

// State of the executor.
type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
)

// Config controls the queue, worker pool and waiting behaviour.
type Config struct {
	Workers        int
	QueueSize      int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxFailures    int // failed outcomes Await can still report
}

// ResponseArchive receives every response for long-term storage.
type ResponseArchive interface {
	Archive(ctx context.Context, resp *AIResponse) error
	Lookup(ctx context.Context, requestID string) (*AIResponse, error)
}

// RequestRecorder records request outcomes, e.g. as OpenTelemetry metrics.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, requestType, status string, duration time.Duration)
}

// ResponseNotifier announces stored responses to other systems.
type ResponseNotifier interface {
	Notify(ctx context.Context, resp *AIResponse) error
}

type Option func(*Orchestrator)

func WithGenerator(g ResultGenerator) Option { return func(o *Orchestrator) { o.generator = g } }
func WithArchive(a ResponseArchive) Option   { return func(o *Orchestrator) { o.archive = a } }
func WithTracer(t trace.Tracer) Option       { return func(o *Orchestrator) { o.tracer = t } }
func WithRecorder(r RequestRecorder) Option  { return func(o *Orchestrator) { o.recorder = r } }
func WithNotifier(n ResponseNotifier) Option { return func(o *Orchestrator) { o.notifier = n } }

type job struct {
	req    AIRequest
	ticket *Ticket
}

// Orchestrator owns the request queue and its workers. Create it with New and
// stop it with Close.
type Orchestrator struct {
	cfg       Config
	registry  *registry.Registry
	store     ResponseStore
	generator ResultGenerator
	archive   ResponseArchive
	tracer    trace.Tracer
	recorder  RequestRecorder
	notifier  ResponseNotifier
	logger    logger.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	pending     map[string]*Ticket
	inFlight    int
	failed      map[string]error
	failedOrder []string
}

// New starts cfg.Workers workers draining a queue of cfg.QueueSize.
func New(cfg Config, reg *registry.Registry, store ResponseStore, log logger.Logger, opts ...Option) (*Orchestrator, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if store == nil {
		return nil, errors.New("response store is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("max delay %s is below min delay %s", cfg.MaxDelay, cfg.MinDelay)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:       cfg,
		registry:  reg,
		store:     store,
		generator: NewCannedGenerator(),
		tracer:    otel.Tracer("crm-ai-orchestrator/orchestrator"),
		logger:    log.With(map[string]interface{}{"component": "orchestrator"}),
		queue:     make(chan job, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]*Ticket),
		failed:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(o)
	}

	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.work(i)
	}

	o.logger.Info("orchestrator started", map[string]interface{}{
		"workers":   cfg.Workers,
		"queueSize": cfg.QueueSize,
	})
	return o, nil
}

// Registry returns the model registry the orchestrator routes against.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Submit validates and enqueues req. It never blocks: a full queue fails with
// ErrQueueFull. Empty ids are filled with a uuid.
func (o *Orchestrator) Submit(ctx context.Context, req AIRequest) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewRequestTimeoutError(req.ID, fmt.Errorf("%w: %v", ErrRequestTimeout, err))
	}
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, apperrors.NewOrchestratorClosedError(ErrClosed)
	}
	if _, exists := o.pending[req.ID]; exists {
		return nil, apperrors.NewDuplicateRequestError(req.ID, ErrDuplicateRequest)
	}

	ticket := newTicket(req.ID)
	select {
	case o.queue <- job{req: req, ticket: ticket}:
	default:
		metrics.AIRequestsTotal.WithLabelValues(string(req.Type), metrics.StatusRejected).Inc()
		return nil, apperrors.NewQueueFullError(cap(o.queue), ErrQueueFull)
	}

	o.pending[req.ID] = ticket
	o.inFlight++
	delete(o.failed, req.ID)
	metrics.AIQueueDepth.Set(float64(len(o.queue)))

	o.logger.Debug("request queued", map[string]interface{}{
		"requestId":   req.ID,
		"requestType": string(req.Type),
		"queueDepth":  len(o.queue),
	})
	return ticket, nil
}

// Process submits req and waits for its outcome. The wait is bounded by ctx
// and by the configured request timeout. A timed out request keeps running;
// its response can still be fetched with Await.
func (o *Orchestrator) Process(ctx context.Context, req AIRequest) (*AIResponse, error) {
	ticket, err := o.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}
	return ticket.Wait(ctx)
}

// Await polls the response store every poll interval until a response for
// requestID appears or ctx ends. Requests still pending in this process are
// awaited on their ticket; recent failures are reported directly.
func (o *Orchestrator) Await(ctx context.Context, requestID string) (*AIResponse, error) {
	o.mu.Lock()
	ticket := o.pending[requestID]
	failure := o.failed[requestID]
	o.mu.Unlock()

	if ticket != nil {
		return ticket.Wait(ctx)
	}
	if failure != nil {
		return nil, failure
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := o.Lookup(ctx, requestID)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrResponseNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.NewRequestTimeoutError(requestID, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// Lookup returns the stored response for requestID, falling back to the
// archive when one is configured.
func (o *Orchestrator) Lookup(ctx context.Context, requestID string) (*AIResponse, error) {
	resp, err := o.store.Get(ctx, requestID)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, ErrResponseNotFound) {
		return nil, apperrors.NewStoreUnavailableError("response_store", err)
	}
	if o.archive != nil {
		if resp, aerr := o.archive.Lookup(ctx, requestID); aerr == nil {
			return resp, nil
		} else if !errors.Is(aerr, ErrResponseNotFound) {
			o.logger.Warn("archive lookup failed", map[string]interface{}{
				"requestId": requestID,
				"error":     aerr,
			})
		}
	}
	return nil, apperrors.NewResponseNotFoundError(requestID, ErrResponseNotFound)
}

// State reports Draining while any request is queued or executing.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight > 0 {
		return StateDraining
	}
	return StateIdle
}

// QueueDepth is the number of requests waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Close stops accepting requests and lets the workers drain the queue. If ctx
// ends first, remaining requests fail with ErrClosed.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		o.logger.Info("orchestrator stopped", nil)
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		o.logger.Warn("orchestrator stopped before queue drained", nil)
		return ctx.Err()
	}
}

func (o *Orchestrator) work(id int) {
	defer o.wg.Done()
	for j := range o.queue {
		metrics.AIQueueDepth.Set(float64(len(o.queue)))
		resp, err := o.execute(o.ctx, j.req)
		o.finish(j, resp, err)
	}
	o.logger.Debug("worker exited", map[string]interface{}{"worker": id})
}

func (o *Orchestrator) execute(ctx context.Context, req AIRequest) (resp *AIResponse, err error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute", trace.WithAttributes(
		attribute.String("ai.request_id", req.ID),
		attribute.String("ai.request_type", string(req.Type)),
	))
	status := metrics.StatusSuccess
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.AIRequestsTotal.WithLabelValues(string(req.Type), status).Inc()
		if o.recorder != nil {
			o.recorder.RecordRequest(ctx, string(req.Type), status, time.Since(start))
		}
	}()

	if ctx.Err() != nil {
		status = metrics.StatusRejected
		return nil, apperrors.NewOrchestratorClosedError(ErrClosed)
	}

	modelIDs := Route(o.registry, req.Type)
	if len(modelIDs) == 0 {
		status = metrics.StatusNoModel
		return nil, apperrors.NewNoModelAvailableError(string(req.Type), ErrNoModelAvailable)
	}
	model, _ := o.registry.Model(modelIDs[0])
	span.SetAttributes(attribute.String("ai.model_id", model.ID))

	if err := sleepContext(ctx, o.delay()); err != nil {
		status = metrics.StatusRejected
		return nil, apperrors.NewOrchestratorClosedError(fmt.Errorf("%w: %v", ErrClosed, err))
	}

	result, err := o.generate(ctx, req, model)
	if err != nil {
		status = metrics.StatusHandlerFailed
		o.logger.Error("result generation failed", map[string]interface{}{
			"requestId": req.ID,
			"modelId":   model.ID,
			"error":     err,
		})
		return nil, apperrors.NewHandlerFailedError(req.ID, fmt.Errorf("%w: %v", ErrHandlerFailed, err))
	}

	elapsed := time.Since(start)
	metrics.AIRequestDuration.WithLabelValues(string(req.Type), model.ID).Observe(elapsed.Seconds())

	return &AIResponse{
		ID:             uuid.NewString(),
		RequestID:      req.ID,
		Type:           req.Type,
		ModelID:        model.ID,
		Result:         result,
		Confidence:     confidence(),
		ProcessingTime: elapsed.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}, nil
}

// generate runs the generator, turning a panic into an error.
func (o *Orchestrator) generate(ctx context.Context, req AIRequest, model registry.AIModel) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	result, err = o.generator.Generate(ctx, req, model)
	if err == nil && result == nil {
		err = errors.New("generator returned no result")
	}
	if err == nil && result.RequestType() != req.Type {
		err = fmt.Errorf("generator returned %s result for %s request", result.RequestType(), req.Type)
	}
	return result, err
}

func (o *Orchestrator) finish(j job, resp *AIResponse, err error) {
	if err == nil {
		if serr := o.store.Save(o.ctx, resp); serr != nil {
			o.logger.Error("failed to store response", map[string]interface{}{
				"requestId": resp.RequestID,
				"error":     serr,
			})
		}
		if o.archive != nil {
			if aerr := o.archive.Archive(o.ctx, resp); aerr != nil {
				o.logger.Warn("failed to archive response", map[string]interface{}{
					"requestId": resp.RequestID,
					"error":     aerr,
				})
			}
		}
		if o.notifier != nil {
			if nerr := o.notifier.Notify(o.ctx, resp); nerr != nil {
				o.logger.Warn("failed to publish response notification", map[string]interface{}{
					"requestId": resp.RequestID,
					"error":     nerr,
				})
			}
		}
		o.logger.Info("request completed", map[string]interface{}{
			"requestId":      resp.RequestID,
			"modelId":        resp.ModelID,
			"processingTime": resp.ProcessingTime,
		})
	}

	o.mu.Lock()
	delete(o.pending, j.req.ID)
	o.inFlight--
	if err != nil {
		o.rememberFailureLocked(j.req.ID, err)
	}
	o.mu.Unlock()

	j.ticket.complete(resp, err)
}

func (o *Orchestrator) rememberFailureLocked(requestID string, err error) {
	if _, exists := o.failed[requestID]; !exists {
		o.failedOrder = append(o.failedOrder, requestID)
	}
	o.failed[requestID] = err
	for len(o.failedOrder) > o.cfg.MaxFailures {
		delete(o.failed, o.failedOrder[0])
		o.failedOrder = o.failedOrder[1:]
	}
}

func (o *Orchestrator) delay() time.Duration {
	spread := o.cfg.MaxDelay - o.cfg.MinDelay
	if spread <= 0 {
		return o.cfg.MinDelay
	}
	return o.cfg.MinDelay + time.Duration(rand.Int63n(int64(spread)+1))
}

// confidence returns a value in [0.7, 1.0).
func confidence() float64 {
	c := 0.7 + rand.Float64()*0.3
	if c >= 1.0 {
		c = math.Nextafter(1.0, 0)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func normalizeRequest(req AIRequest) (AIRequest, error) {
	if req.Type == "" {
		return req, apperrors.NewInvalidRequestError("type is required", ErrInvalidRequest)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if !req.Type.Known() {
		// Unknown types are accepted and rejected by routing.
		return req, nil
	}
	if req.Data == nil {
		p, err := DecodePayload(req.Type, nil)
		if err != nil {
			return req, apperrors.NewInvalidRequestError(err.Error(), ErrInvalidRequest)
		}
		req.Data = p
	}
	if req.Data.RequestType() != req.Type {
		return req, apperrors.NewInvalidRequestError(
			fmt.Sprintf("payload %T does not match request type %s", req.Data, req.Type), ErrInvalidRequest)
	}
	return req, nil
}
