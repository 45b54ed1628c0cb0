/*
Package tracker contains the live session plumbing around the engine.

A session has three goroutines that only talk through a Broker. The Player
runs in the audio thread: it owns the engine, applies the events queued for
it at the start of every block and renders. The Sequencer is the control
context: it plays songs against the wall clock and forwards live input from
MIDI, the keyboard or remote processes, so it is the only producer of the
player's event channel. The Detector meters the rendered audio and reports
levels to whoever reads ToModel.

All sends from the player are non-blocking; when a queue is full, the message
is dropped rather than stalling the audio thread.
*/
package tracker
