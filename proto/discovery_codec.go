package proto

import "io"

// EncodeDiscovery serializes ev into a complete length-prefixed frame,
// ready to write as a single UDP datagram.
func EncodeDiscovery(ev DiscoveryEvent) ([]byte, error) {
	var body []byte
	switch e := ev.(type) {
	case PresenceRequest:
		body = append(body, tagPresenceRequest)
		body = putUint32(body, e.Dedup)
	case PresenceResponse:
		body = append(body, tagPresenceResponse)
		body = putMetadata(body, e.Metadata)
	default:
		return nil, errBadFrame(0xFF)
	}

	frame := make([]byte, 0, 4+len(body))
	frame = putUint32(frame, uint32(len(body)))
	frame = append(frame, body...)
	return frame, nil
}

// DecodeDiscovery parses a single UDP datagram (including its length
// prefix) into a DiscoveryEvent.
func DecodeDiscovery(datagram []byte) (DiscoveryEvent, error) {
	n, rest, err := takeUint32(datagram)
	if err != nil {
		return nil, err
	}
	if uint32(len(rest)) < n {
		return nil, io.ErrUnexpectedEOF
	}
	body := rest[:n]
	if len(body) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	tag, body := body[0], body[1:]
	switch tag {
	case tagPresenceRequest:
		dedup, _, err := takeUint32(body)
		if err != nil {
			return nil, err
		}
		return PresenceRequest{Dedup: dedup}, nil
	case tagPresenceResponse:
		meta, _, err := takeMetadata(body)
		if err != nil {
			return nil, err
		}
		return PresenceResponse{Metadata: meta}, nil
	default:
		return nil, errBadFrame(tag)
	}
}
