package server

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	NodeID   string   `json:"node_id"`
	TCPPort  int      `json:"tcp_port"`
	HTTPPort int      `json:"http_port"`
	Keys     []string `json:"keys"`
}

// DataResponse is the body of a GET /data/{key} hit.
type DataResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StoreRequest is the body of POST /store. Both fields are required;
// pointers tell a missing field from an empty string.
type StoreRequest struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

// Plain-text bodies of the non-JSON replies.
const (
	textOK            = "OK"
	textNotFound      = "Not found"
	textInternalError = "Internal error"
	textBadRequest    = "Bad request"
)
