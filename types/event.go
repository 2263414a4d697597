package types

import "time"

// EventKind names an Event variant. It is used for logging and metric labels.
type EventKind string

const (
	EventRegister       EventKind = "register"
	EventPlan           EventKind = "plan"
	EventWait           EventKind = "wait"
	EventOutput         EventKind = "output"
	EventSlow           EventKind = "slow"
	EventResult         EventKind = "result"
	EventUncaughtError  EventKind = "uncaught_error"
	EventStepRegister   EventKind = "step_register"
	EventStepWait       EventKind = "step_wait"
	EventStepResult     EventKind = "step_result"
	EventCompleted      EventKind = "completed"
	EventSigint         EventKind = "sigint"
	EventForceEndReport EventKind = "force_end_report"
)

// Event is a message emitted by a test run. The set of implementations is
// closed; consumers switch over all of them.
type Event interface {
	Kind() EventKind
	event()
}

// RegisterEvent carries every test registered by the module.
type RegisterEvent struct {
	Descriptions *TestDescriptions
}

// PlanEvent announces the tests selected for execution.
type PlanEvent struct {
	Plan Plan
}

// WaitEvent marks the start of a test.
type WaitEvent struct {
	ID ID
}

// OutputEvent carries free-form output written by the script.
type OutputEvent struct {
	Data []byte
}

// SlowEvent reports a test that has been running for Elapsed. It is informational only.
type SlowEvent struct {
	ID      ID
	Elapsed time.Duration
}

// ResultEvent carries the terminal result of a test.
type ResultEvent struct {
	ID      ID
	Result  TestResult
	Elapsed time.Duration
}

// UncaughtErrorEvent reports a script error that is not attributable to a single test result.
type UncaughtErrorEvent struct {
	Origin string
	Error  *JSError
}

// StepRegisterEvent announces a new step.
type StepRegisterEvent struct {
	Description StepDescription
}

// StepWaitEvent marks the start of a step.
type StepWaitEvent struct {
	ID ID
}

// StepResultEvent carries the terminal result of a step.
type StepResultEvent struct {
	ID      ID
	Result  StepResult
	Elapsed time.Duration
}

// CompletedEvent indicates the producer has finished running tests.
type CompletedEvent struct{}

// SigintEvent indicates the operator interrupted the run.
type SigintEvent struct{}

// ForceEndReportEvent ends a report without closing the channel.
type ForceEndReportEvent struct{}

func (RegisterEvent) Kind() EventKind       { return EventRegister }
func (PlanEvent) Kind() EventKind           { return EventPlan }
func (WaitEvent) Kind() EventKind           { return EventWait }
func (OutputEvent) Kind() EventKind         { return EventOutput }
func (SlowEvent) Kind() EventKind           { return EventSlow }
func (ResultEvent) Kind() EventKind         { return EventResult }
func (UncaughtErrorEvent) Kind() EventKind  { return EventUncaughtError }
func (StepRegisterEvent) Kind() EventKind   { return EventStepRegister }
func (StepWaitEvent) Kind() EventKind       { return EventStepWait }
func (StepResultEvent) Kind() EventKind     { return EventStepResult }
func (CompletedEvent) Kind() EventKind      { return EventCompleted }
func (SigintEvent) Kind() EventKind         { return EventSigint }
func (ForceEndReportEvent) Kind() EventKind { return EventForceEndReport }

func (RegisterEvent) event()       {}
func (PlanEvent) event()           {}
func (WaitEvent) event()           {}
func (OutputEvent) event()         {}
func (SlowEvent) event()           {}
func (ResultEvent) event()         {}
func (UncaughtErrorEvent) event()  {}
func (StepRegisterEvent) event()   {}
func (StepWaitEvent) event()       {}
func (StepResultEvent) event()     {}
func (CompletedEvent) event()      {}
func (SigintEvent) event()         {}
func (ForceEndReportEvent) event() {}

// RequiresStdioSync reports whether pending script output must be delivered
// before e, so that output and results interleave correctly.
func RequiresStdioSync(e Event) bool {
	switch e.(type) {
	case PlanEvent, ResultEvent, StepWaitEvent, StepResultEvent,
		UncaughtErrorEvent, ForceEndReportEvent, CompletedEvent:
		return true
	default:
		return false
	}
}
