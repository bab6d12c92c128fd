// Package transport carries buffers between element ports and NATS subjects.
//
// Each port maps to one subject. The buffer bytes travel as the message body and
// the format, presentation timestamp and buffer identity travel as headers:
//
//	Mediajoin-Format: video/x-raw,format=GRAY8,width=4,height=4
//	Mediajoin-Pts:    40000000
//	Mediajoin-Id:     6f1c...
//
// NATSSink publishes routed outputs, NATSSource subscribes input subjects and
// hands decoded buffers to a Receiver, and NATSLinker plugs both into
// subnet.Compose. The transport adds no delivery guarantees beyond core NATS.
package transport
