package sagaflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ExecutionRecord tracks one invocation of a step's forward or
// compensating action.
type ExecutionRecord struct {
	Step      StepName
	Phase     Phase
	StartTime time.Time
	EndTime   time.Time
	State     StepState
	Error     error
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	sink    DeadLetterSink
	metrics MetricsRecorder
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDeadLetterSink sets where failed compensations are reported.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(o *options) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// Orchestrator executes a Definition against entities. One Orchestrator can
// drive any number of runs, including concurrent runs over distinct
// entities; each run gets its own Execution.
type Orchestrator[E Entity] struct {
	definition *Definition[E]
	logger     *zap.Logger
	sink       DeadLetterSink
	metrics    MetricsRecorder
}

// NewOrchestrator creates an orchestrator for the given definition.
func NewOrchestrator[E Entity](definition *Definition[E], opts ...Option) *Orchestrator[E] {
	o := options{
		logger:  zap.NewNop(),
		sink:    discardSink{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Orchestrator[E]{
		definition: definition,
		logger:     o.logger,
		sink:       o.sink,
		metrics:    o.metrics,
	}
}

// Definition returns the definition this orchestrator runs.
func (o *Orchestrator[E]) Definition() *Definition[E] {
	return o.definition
}

// Run executes the saga against a freshly created entity. It returns nil
// when every step succeeded and the entity is confirmed; otherwise it
// returns a *SagaFailure wrapping the forward failure, after every
// completed step has been compensated in reverse order.
//
// No timeout is applied to step actions: a step that never returns blocks
// the run.
func (o *Orchestrator[E]) Run(ctx context.Context, entity E) error {
	return o.NewExecution(entity).Execute(ctx)
}

// NewExecution prepares a single run over entity without starting it.
func (o *Orchestrator[E]) NewExecution(entity E) *Execution[E] {
	sagaID := NewSagaID()
	return &Execution[E]{
		orchestrator: o,
		entity:       entity,
		sagaID:       sagaID,
		stack:        NewCompletedStack[E](o.definition.Len()),
		journal:      NewJournal(sagaID),
		trace:        make([]ExecutionRecord, 0, o.definition.Len()),
		logger: o.logger.With(
			zap.Stringer("saga_id", sagaID),
			zap.Stringer("definition", o.definition.Name()),
			zap.String("entity_id", entity.EntityID()),
		),
	}
}

// Execution is one saga run over one entity. It is not safe for concurrent
// use; inspect it only after Execute has returned.
type Execution[E Entity] struct {
	orchestrator *Orchestrator[E]
	entity       E
	sagaID       SagaID
	logger       *zap.Logger

	stack          *CompletedStack[E]
	stackAtFailure []StepName
	journal        *Journal
	trace          []ExecutionRecord
	executed       bool
}

// Execute runs the forward phase and, on failure, the compensation phase.
func (e *Execution[E]) Execute(ctx context.Context) error {
	if e.executed {
		return ErrAlreadyExecuted
	}
	e.executed = true

	def := e.orchestrator.definition
	metrics := e.orchestrator.metrics
	startedAt := time.Now()

	metrics.SagaStarted(def.Name())
	e.logger.Info("saga started", zap.Int("steps", def.Len()))

	for _, step := range def.steps {
		stepErr := e.forward(ctx, step)
		if stepErr == nil {
			continue
		}

		e.stackAtFailure = e.stack.Names()
		e.logger.Error("step failed, compensating completed steps",
			zap.Stringer("step", step.Name()),
			zap.Error(stepErr),
			zap.Int("completed_steps", e.stack.Len()),
		)
		e.transition(SagaCompensating)

		// Compensation must reach every completed step even if the caller
		// has given up on the run.
		compErrs := e.compensate(context.WithoutCancel(ctx))

		e.transition(SagaFailed)
		metrics.SagaFailed(def.Name(), step.Name(), time.Since(startedAt))
		e.logger.Warn("saga failed",
			zap.Stringer("failed_step", step.Name()),
			zap.Int("compensation_failures", len(compErrs)),
			zap.Bool("fully_compensated", len(compErrs) == 0),
		)

		return &SagaFailure{
			SagaID:             e.sagaID,
			Err:                stepErr,
			CompensationErrors: compErrs,
		}
	}

	e.entity.MarkConfirmed()
	e.transition(SagaSucceeded)
	metrics.SagaSucceeded(def.Name(), time.Since(startedAt))
	e.logger.Info("saga succeeded", zap.Int("completed_steps", e.stack.Len()))

	return nil
}

// forward runs a single forward action and pushes the step on success.
func (e *Execution[E]) forward(ctx context.Context, step Step[E]) *StepExecutionError {
	name := step.Name()
	e.record(name, EventStarted)
	e.logger.Debug("step started", zap.Stringer("step", name))

	startTime := time.Now()
	err := call(func() error { return step.Forward(ctx, e.entity) })
	endTime := time.Now()
	e.orchestrator.metrics.StepExecuted(e.orchestrator.definition.Name(), name, PhaseForward, err == nil, endTime.Sub(startTime))

	if err != nil {
		stepErr := StepFailed(name, err)
		e.record(name, EventFailed)
		e.appendTrace(name, PhaseForward, startTime, endTime, stepErr)
		return stepErr
	}

	e.record(name, EventSucceeded)
	e.appendTrace(name, PhaseForward, startTime, endTime, nil)
	e.stack.Push(step)
	e.logger.Info("step completed", zap.Stringer("step", name), zap.Duration("duration", endTime.Sub(startTime)))
	return nil
}

// compensate drains the stack, most recently completed step first. A failed
// compensation is recorded and reported but never stops the loop.
func (e *Execution[E]) compensate(ctx context.Context) []*CompensationError {
	var failures []*CompensationError

	for {
		step, ok := e.stack.Pop()
		if !ok {
			break
		}
		if compErr := e.compensateStep(ctx, step); compErr != nil {
			failures = append(failures, compErr)
		}
	}

	return failures
}

func (e *Execution[E]) compensateStep(ctx context.Context, step Step[E]) *CompensationError {
	name := step.Name()
	e.record(name, EventCompensationStarted)
	e.logger.Debug("compensation started", zap.Stringer("step", name))

	startTime := time.Now()
	err := call(func() error { return step.Compensate(ctx, e.entity) })
	endTime := time.Now()
	e.orchestrator.metrics.StepExecuted(e.orchestrator.definition.Name(), name, PhaseCompensate, err == nil, endTime.Sub(startTime))

	if err == nil {
		e.record(name, EventCompensated)
		e.appendTrace(name, PhaseCompensate, startTime, endTime, nil)
		e.logger.Info("step compensated", zap.Stringer("step", name))
		return nil
	}

	compErr := CompensationFailed(name, err)
	e.record(name, EventCompensationFailed)
	e.appendTrace(name, PhaseCompensate, startTime, endTime, compErr)
	e.logger.Error("compensation failed, entity needs reconciliation", zap.Stringer("step", name), zap.Error(compErr))
	e.reportDeadLetter(ctx, compErr)
	return compErr
}

func (e *Execution[E]) reportDeadLetter(ctx context.Context, compErr *CompensationError) {
	def := e.orchestrator.definition.Name()
	letter := newDeadLetter(e.sagaID, def, e.entity, compErr)

	err := call(func() error { return e.orchestrator.sink.Report(ctx, letter) })
	e.orchestrator.metrics.DeadLetterReported(def, err == nil)
	if err != nil {
		e.logger.Error("failed to report dead letter",
			zap.Stringer("step", compErr.Step),
			zap.String("dead_letter_id", letter.ID),
			zap.Error(err),
		)
	}
}

// record writes a journal event. A rejected event means the orchestrator
// broke its own state machine, so it is logged loudly but not fatal to the
// run.
func (e *Execution[E]) record(step StepName, event StepEventType) {
	if err := e.journal.Record(step, event); err != nil {
		e.logger.Error("journal rejected step event", zap.Error(err))
	}
}

func (e *Execution[E]) transition(to SagaState) {
	if err := e.journal.Transition(to); err != nil {
		e.logger.Error("journal rejected saga transition", zap.Error(err))
	}
}

func (e *Execution[E]) appendTrace(step StepName, phase Phase, start, end time.Time, err error) {
	e.trace = append(e.trace, ExecutionRecord{
		Step:      step,
		Phase:     phase,
		StartTime: start,
		EndTime:   end,
		State:     e.journal.StepState(step),
		Error:     err,
	})
}

// call invokes fn, turning a panic into an error so that one misbehaving
// action cannot cut the compensation loop short.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// SagaID returns the identifier of this run.
func (e *Execution[E]) SagaID() SagaID {
	return e.sagaID
}

// Entity returns the entity this run operates on.
func (e *Execution[E]) Entity() E {
	return e.entity
}

// State returns the saga state.
func (e *Execution[E]) State() SagaState {
	return e.journal.SagaState()
}

// Journal returns the run's event journal.
func (e *Execution[E]) Journal() *Journal {
	return e.journal
}

// CompletedSteps returns the current stack contents, bottom to top. After a
// successful run the stack is left full; after a failed run it is empty.
func (e *Execution[E]) CompletedSteps() []StepName {
	return e.stack.Names()
}

// StackAtFailure returns the stack contents at the moment forward progress
// stopped, or nil if no step failed.
func (e *Execution[E]) StackAtFailure() []StepName {
	return append([]StepName(nil), e.stackAtFailure...)
}

// Trace returns a copy of the execution trace.
func (e *Execution[E]) Trace() []ExecutionRecord {
	trace := make([]ExecutionRecord, len(e.trace))
	copy(trace, e.trace)
	return trace
}

// ForwardOrder returns the steps whose forward action was invoked, in order.
func (e *Execution[E]) ForwardOrder() []StepName {
	return e.order(PhaseForward)
}

// CompensationOrder returns the steps whose compensating action was
// invoked, in order.
func (e *Execution[E]) CompensationOrder() []StepName {
	return e.order(PhaseCompensate)
}

func (e *Execution[E]) order(phase Phase) []StepName {
	names := make([]StepName, 0, len(e.trace))
	for _, rec := range e.trace {
		if rec.Phase == phase {
			names = append(names, rec.Step)
		}
	}
	return names
}
