package proto

import "github.com/lanhop/core/peer"

// Connection is one of the five messages exchanged during the handshake.
type Connection interface {
	isConnection()
}

// Request is the client's opening handshake message: its id and an HMAC
// tag over that id.
type Request struct {
	ID  peer.Id
	Tag []byte
}

func (Request) isConnection() {}

// Response answers a Request with the server's own HMAC tag.
type Response struct {
	Tag []byte
}

func (Response) isConnection() {}

// CompleteRequest is the client's final acknowledgement.
type CompleteRequest struct{}

func (CompleteRequest) isConnection() {}

// CompleteResponse closes out the handshake from the server side.
type CompleteResponse struct{}

func (CompleteResponse) isConnection() {}

// Failure aborts the handshake with a well-known numeric code.
type Failure struct {
	Code uint32
}

func (Failure) isConnection() {}

const (
	tagRequest          byte = 0x00
	tagResponse         byte = 0x01
	tagCompleteRequest  byte = 0x02
	tagCompleteResponse byte = 0x03
	tagFailure          byte = 0xFF
)
