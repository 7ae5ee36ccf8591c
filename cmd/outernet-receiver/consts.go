package main

import "time"

const (
	carrierMulticast = "multicast"
	carrierKissfile  = "kissfile"
	carrierSerial    = "serial"
)

// Carrier read-loop tuning, mirroring the scale the teacher's serial backend
// uses for its own RX loop.
const (
	multicastDatagramMaxLen  = 65536
	serialReadBufSize        = 4096
	defaultSerialReadTimeout = 50 * time.Millisecond
	rxBackoffMin             = 10 * time.Millisecond
	rxBackoffMax             = 2 * time.Second
)
