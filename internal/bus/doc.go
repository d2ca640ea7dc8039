// Package bus drives the gateway's half-duplex RS-485 buses.
//
// A Port owns one bus: its receive Queue, its Transport and the Direction
// signal that switches the transceiver between driving and listening. Each
// gateway has two independent ports selected by the integers 1 and 2.
//
// # Receive Path
//
// Run is the producer side. It blocks in the transport's Read and hands each
// chunk to OnReceive, which pushes the bytes into the queue, flags the chunk
// and wakes the main loop. Bytes that do not fit are dropped silently.
//
// # Transmit Path
//
// Transmit asserts the direction signal, writes every byte, waits until the
// UART has shifted the last bit out (Drain, not merely queued) and then
// releases the signal. It blocks the caller for the duration of the frame,
// which stalls the gateway main loop; this is intentional so that the
// direction turnaround can never overlap another frame.
//
// # Serial Ports
//
// SerialTransport adapts a go.bug.st/serial port. ModemLine uses the same
// port's RTS or DTR output as the direction signal, which is how USB RS-485
// adapters without automatic direction control are usually wired:
//
//	tr, err := bus.OpenSerial("/dev/ttyUSB0", 115200)
//	if err != nil {
//	    return err
//	}
//	port := bus.NewPort(1, tr, bus.NewModemLine(tr, bus.LineRTS, false), queue.DefaultCapacity)
//	go port.Run(ctx, loop.Wake)
package bus
