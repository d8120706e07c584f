package lanhop

import "github.com/lanhop/core/proto"

// methodLaunchUri is the one application-level command this repo
// defines atop the core's opaque CtlRequest, grounded on node.rs's
// CtlRequest::LaunchUri(String) variant. Additional commands would be
// added here the same way, without touching the core's proto package.
const methodLaunchUri = "LaunchUri"

func launchUriRequest(uri string) proto.CtlRequest {
	return proto.CtlRequest{Method: methodLaunchUri, Payload: []byte(uri)}
}

// CTLUnknownErr is returned (as a CtlResponse error code) when this node
// can't route an inbound request to an application handler, matching
// node.rs's CTL_UNKNOWN_ERR.
const CTLUnknownErr uint32 = 1

func errorResponse(code uint32) proto.CtlResponse {
	return proto.CtlResponse{Status: proto.CtlError, Code: code}
}
