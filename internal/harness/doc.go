// Package harness runs micro action scenarios against a real store.
//
// A scenario describes a counter store, a middleware chain whose
// middlewares react to action types by dispatching other actions, and the
// terminal guard. The harness builds that store with the journal as the
// outermost middleware, dispatches each step, and reads the trace back
// from the journal.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	flow_token: test-flow-001
//	catalog: ../catalog          # optional CUE catalog directory
//	reducer: { kind: counter, initial: 0 }
//	guard: deny                  # deny | log | none
//	middleware:
//	  - name: not_allowed
//	    reactions:
//	      - when: MICRO_FROM_NOT_ALLOWED
//	        emit: TEST
//	        micro: true
//	  - name: allowed
//	    allow_micro: true
//	    reactions:
//	      - when: MICRO_FROM_ALLOWED
//	        emit: TEST
//	        micro: true
//	steps:
//	  - dispatch: MICRO_FROM_ALLOWED
//	    expect: { state: 3 }
//	  - dispatch: MICRO_FROM_NOT_ALLOWED
//	    expect: { error: "'TEST' is a micro action.", outcome: denied }
//	assertions:
//	  - type: trace_contains
//	    action: TEST
//	    marker: cleared
//	  - type: final_state
//	    state: 3
//
// # Assertion Types
//
//   - trace_contains: an entry matches the action and optional marker,
//     outcome and depth filters
//   - trace_order: actions first appear in the specified order
//   - trace_count: exactly N entries match
//   - final_state: the store state after the last step
//   - outcome_count: exactly N journaled dispatches of the flow have the
//     given outcome
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed flow token (from scenario.flow_token or testutil.DefaultFlowToken)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per run)
//
// This ensures identical traces across runs for golden file comparison.
package harness
