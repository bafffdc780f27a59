// Package intent implements simulation-based inverse planning for
// navigation-goal inference.
//
// Every control cycle, a forward motion simulator (the Oracle) predicts
// the velocity each observed agent would exhibit if it were navigating
// toward each candidate goal while avoiding collisions. The predicted
// velocity is compared against the agent's observed velocity through a
// likelihood model, and the result drives a recursive Bayesian update of
// a per-agent belief over the goal hypotheses.
//
// Responsibilities: hypothesis generation, the oracle contract, the
// likelihood model, the belief tracker with its degeneracy and
// recoverability safeguards, and the per-cycle orchestration engine.
//
// The package performs pure computation over already-available state:
// no scheduling, no I/O, no persistence. Cycle cadence, observation
// transport, and recording are owned by the callers in cmd/ and the
// sibling internal packages.
package intent
