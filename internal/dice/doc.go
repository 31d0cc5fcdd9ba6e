// Package dice implements the emission loop: roll a six-sided die, print
// the value on its own line and record it into an injected gauge.
//
// The loop and the metric reader run on independent timers. Recording is
// an in-memory update; export happens on the reader's schedule.
package dice
