// Package sagaflow implements an orchestrated saga: a fixed sequence of
// forward steps run against one mutable entity, with every completed step
// compensated in strict reverse order when a later step fails.
//
// Sagas approximate a distributed transaction across independent systems
// (inventory, payments, shipping, notifications) without a global commit
// protocol. Consistency is eventual and application-level: the saga promises
// only that each completed step's compensating action was attempted exactly
// once.
//
// Overview
//
//  1. Implement Entity for the record threaded through the saga.
//  2. Define steps:
//     - Implement Step directly, or
//     - use NewStep / NewStepWithNoOpCompensate with plain functions.
//  3. Build a Definition:
//     - Append steps to a DefinitionBuilder, or register them in a
//     StepRegistry and append them by name.
//  4. Run:
//     - Create an Orchestrator with NewOrchestrator, optionally passing
//     WithLogger, WithDeadLetterSink and WithMetrics.
//     - Call Run once per freshly created entity. A failed run returns a
//     *SagaFailure wrapping the *StepExecutionError that stopped it.
//
// Compensation failures never abort the compensation loop and never replace
// the original error; they are logged, counted, and reported to the
// configured DeadLetterSink (MemorySink, FileSink or RedisSink).
//
// Steps run one at a time. No timeout is applied to step actions; a step
// that never returns blocks its run.
//
// The package order provides the order-checkout saga built on this engine.
package sagaflow
