/*
Package domain contains the core models of the IVR simulator.

It defines the declarative flow documents the state machine interprets, the
per-call session snapshot, and the decisions produced by intent recognition.
The package is pure: no I/O, no persistence, no logging.

# Key Entities

  - FlowDefinition: a named menu tree with an initial state and ordered options.
  - Target: where an option leads (a state, another flow, or the end of the call).
  - SessionState: the runtime snapshot of one call (position, collected data, transcript).
  - IntentDecision: what the recognizer understood from one utterance.
*/
package domain
