package proto

import (
	"io"

	"github.com/lanhop/core/peer"
)

// WriteConnection writes a handshake message as a length-prefixed frame.
func WriteConnection(w io.Writer, msg Connection) error {
	var body []byte
	switch m := msg.(type) {
	case Request:
		body = append(body, tagRequest)
		body = putBytes(body, m.ID.Bytes())
		body = putBytes(body, m.Tag)
	case Response:
		body = append(body, tagResponse)
		body = putBytes(body, m.Tag)
	case CompleteRequest:
		body = append(body, tagCompleteRequest)
	case CompleteResponse:
		body = append(body, tagCompleteResponse)
	case Failure:
		body = append(body, tagFailure)
		body = putUint32(body, m.Code)
	default:
		return errBadFrame(0xFF)
	}
	return writeFrame(w, body)
}

// ReadConnection reads and decodes a single handshake frame. A stream
// closed at a frame boundary surfaces as io.EOF; a stream closed
// mid-frame surfaces as io.ErrUnexpectedEOF. Both are treated as
// disconnects by callers.
func ReadConnection(r io.Reader) (Connection, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	if len(body) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	tag, body := body[0], body[1:]
	switch tag {
	case tagRequest:
		idBytes, rest, err := takeBytes(body)
		if err != nil {
			return nil, err
		}
		tagBytes, _, err := takeBytes(rest)
		if err != nil {
			return nil, err
		}
		return Request{ID: peer.FromBytes(idBytes), Tag: tagBytes}, nil
	case tagResponse:
		tagBytes, _, err := takeBytes(body)
		if err != nil {
			return nil, err
		}
		return Response{Tag: tagBytes}, nil
	case tagCompleteRequest:
		return CompleteRequest{}, nil
	case tagCompleteResponse:
		return CompleteResponse{}, nil
	case tagFailure:
		code, _, err := takeUint32(body)
		if err != nil {
			return nil, err
		}
		return Failure{Code: code}, nil
	default:
		return nil, errBadFrame(tag)
	}
}
