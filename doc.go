// Package sdrshm streams IQ samples between this process and an
// external SDR producer/consumer over a lock-free shared-memory ring
// buffer, rather than through a pipe or socket. StartRX, StartTX, and
// StartDuplex each spawn the external process, wait for its ring(s) to
// become well-formed, and return a session exposing decoded chunks
// (RX), an input stream to transmit (TX), or both (duplex), alongside
// a warning channel for overflow and process-health notices.
package sdrshm
