// Package exitcodes defines the exit codes used by op-scripttest.
package exitcodes

// Exit code constants used by op-scripttest
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every test file passes
// * TestFailure (1): Used when a test fails, an uncaught error occurs or "only" was used
// * RuntimeErr (2): Used for module load failures, report flush failures and other runtime errors
// * Interrupted (130): Used when the operator interrupts a run with SIGINT
const (
	Success     = 0   // All tests pass
	TestFailure = 1   // Test failures
	RuntimeErr  = 2   // Runtime errors
	Interrupted = 130 // Operator interrupt
)
