/*
Package session implements the session registry of the IVR simulator.

It serialises turns of the same call with reference-counted local mutexes,
optionally backed by a distributed lock when several replicas share a store,
and offers read-modify-write helpers on top of any ports.SessionStore.
*/
package session
