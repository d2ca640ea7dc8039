// Package client is the operator side of the gateway control protocol.
//
// A Client connects to either control channel: the socket channel as a plain
// host:port (port 3333 when omitted) or the WebSocket pairing channel as a
// ws:// URL. Requests are JSON lines; the first reply that is neither an
// rx_hex event nor an unsolicited event answers the request.
//
//	c, err := client.Dial(ctx, "192.168.1.40", client.DefaultOptions())
//	if err != nil {
//	    fmt.Println(client.GetTroubleshootingHint(err))
//	    return err
//	}
//	defer c.Close()
//
//	reply, err := c.Transmit(ctx, 1, "01 03 00 00 00 02")
//
// Errors are *ClientError values classified by ErrorType.
package client
