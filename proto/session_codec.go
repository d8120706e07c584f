package proto

import "io"

// WriteSession writes s as a length-prefixed frame: id(u64 BE) followed
// by the Ctl discriminant and body. Exact byte layout beyond the shared
// length-prefix/discriminant convention is this core's own extension,
// since spec.md leaves the session frame's wire format implementation
// defined as long as both peers agree on it.
func WriteSession(w io.Writer, s Session) error {
	body := make([]byte, 0, 16)
	body = putUint64(body, s.ID)
	switch ctl := s.Ctl.(type) {
	case CtlRequest:
		body = append(body, ctlTagRequest)
		body = putString(body, ctl.Method)
		body = putBytes(body, ctl.Payload)
	case CtlResponse:
		body = append(body, ctlTagResponse)
		body = append(body, byte(ctl.Status))
		body = putUint32(body, ctl.Code)
	default:
		return errBadFrame(0xFF)
	}
	return writeFrame(w, body)
}

// ReadSession reads and decodes a single session frame.
func ReadSession(r io.Reader) (Session, error) {
	body, err := readFrame(r)
	if err != nil {
		return Session{}, err
	}
	id, body, err := takeUint64(body)
	if err != nil {
		return Session{}, err
	}
	if len(body) < 1 {
		return Session{}, io.ErrUnexpectedEOF
	}
	tag, body := body[0], body[1:]
	switch tag {
	case ctlTagRequest:
		method, rest, err := takeString(body)
		if err != nil {
			return Session{}, err
		}
		payload, _, err := takeBytes(rest)
		if err != nil {
			return Session{}, err
		}
		return Session{ID: id, Ctl: CtlRequest{Method: method, Payload: payload}}, nil
	case ctlTagResponse:
		if len(body) < 1 {
			return Session{}, io.ErrUnexpectedEOF
		}
		status := CtlStatus(body[0])
		code, _, err := takeUint32(body[1:])
		if err != nil {
			return Session{}, err
		}
		return Session{ID: id, Ctl: CtlResponse{Status: status, Code: code}}, nil
	default:
		return Session{}, errBadFrame(tag)
	}
}

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return append(buf, b[:]...)
}

func takeUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, b[8:], nil
}
