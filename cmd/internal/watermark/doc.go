// Package watermark composites identity overlays onto protected content
// frames and suppresses the casual copy paths around them.
//
// Everything here is deterrence, not enforcement. A determined viewer can
// photograph the screen or strip the overlay with effort; the goal is that
// any leaked frame carries the leaker's email, device, and IP, and that
// the low-effort copy routes (right-click, drag, keyboard chords) are
// closed. Access control is enforced server-side by the access evaluator;
// this package never makes grant decisions.
package watermark
