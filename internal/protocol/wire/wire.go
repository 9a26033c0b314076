// Package wire implements the DocuFS frame protocol.
//
// Every message on every socket — client to coordinator, coordinator to
// node control channel, client to node data channel — is one fixed-length
// 5168-byte record. Integers are little-endian; string fields are
// fixed-width, NUL-terminated byte arrays. Receivers must consume the full
// record before returning (short reads are resumed, see ReadMessage).
package wire

// Field widths. These are part of the wire format and must not change.
const (
	MaxName = 256  // username, filename, folder, checkpoint tag
	MaxData = 4096 // payload
	MaxIP   = 16   // dotted-quad node address
)

// FrameSize is the encoded size of one Message in bytes.
const FrameSize = 4 + // opcode
	MaxName*4 + // username, filename, folder, checkpoint
	4*5 + // sentence_num, word_index, flags, request_id, data_length
	MaxData + // data
	4 + // result_code
	MaxIP + // node_ip
	4 // node_port

// Opcode identifies the operation a frame requests.
type Opcode int32

// Opcode values match the legacy wire and must stay stable for
// interoperability.
const (
	OpRegisterNode   Opcode = 1
	OpRegisterClient Opcode = 2

	OpCreate          Opcode = 10
	OpRead            Opcode = 11
	OpWrite           Opcode = 12
	OpDelete          Opcode = 13
	OpView            Opcode = 14
	OpInfo            Opcode = 15
	OpStream          Opcode = 16
	OpListUsers       Opcode = 17
	OpAddAccess       Opcode = 18
	OpRemAccess       Opcode = 19
	OpExec            Opcode = 20
	OpUndo            Opcode = 21
	OpSearch          Opcode = 22
	OpCreateFolder    Opcode = 23
	OpMove            Opcode = 24
	OpViewFolder      Opcode = 25
	OpCheckpoint      Opcode = 26
	OpViewCheckpoint  Opcode = 27
	OpRevert          Opcode = 28
	OpListCheckpoints Opcode = 29
	OpRequestAccess   Opcode = 30
	OpViewRequests    Opcode = 31
	OpRespondRequest  Opcode = 32

	OpHeartbeat Opcode = 33
	OpShutdown  Opcode = 34
	OpReplicate Opcode = 35
	OpListNodes Opcode = 36
)

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

var opcodeNames = map[Opcode]string{
	OpRegisterNode:    "REGISTER_NODE",
	OpRegisterClient:  "REGISTER_CLIENT",
	OpCreate:          "CREATE",
	OpRead:            "READ",
	OpWrite:           "WRITE",
	OpDelete:          "DELETE",
	OpView:            "VIEW",
	OpInfo:            "INFO",
	OpStream:          "STREAM",
	OpListUsers:       "LIST_USERS",
	OpAddAccess:       "ADD_ACCESS",
	OpRemAccess:       "REM_ACCESS",
	OpExec:            "EXEC",
	OpUndo:            "UNDO",
	OpSearch:          "SEARCH",
	OpCreateFolder:    "CREATE_FOLDER",
	OpMove:            "MOVE",
	OpViewFolder:      "VIEW_FOLDER",
	OpCheckpoint:      "CHECKPOINT",
	OpViewCheckpoint:  "VIEW_CHECKPOINT",
	OpRevert:          "REVERT",
	OpListCheckpoints: "LIST_CHECKPOINTS",
	OpRequestAccess:   "REQUEST_ACCESS",
	OpViewRequests:    "VIEW_REQUESTS",
	OpRespondRequest:  "RESPOND_REQUEST",
	OpHeartbeat:       "HEARTBEAT",
	OpShutdown:        "SHUTDOWN",
	OpReplicate:       "REPLICATE",
	OpListNodes:       "LIST_NODES",
}

// Result is the outcome code carried in every reply frame.
type Result int32

const (
	StatusNone Result = 0 // request frames carry no result

	StatusSuccess Result = 200
	StatusSSInfo  Result = 201 // referral: node_ip/node_port are valid
	StatusData    Result = 202 // data payload carries content
	StatusAck     Result = 203

	StatusBadRequest    Result = 400
	StatusDenied        Result = 403
	StatusNotFound      Result = 404
	StatusExists        Result = 409
	StatusWordOOR       Result = 421
	StatusSentenceOOR   Result = 422
	StatusLocked        Result = 423
	StatusFolderMissing Result = 424
	StatusFolderExists  Result = 425
	StatusChkNotFound   Result = 426
	StatusNoRequests    Result = 427
	StatusReqNotFound   Result = 428
	StatusServerError   Result = 500
	StatusUnavailable   Result = 503
)

// OK reports whether r is in the success partition of the code space.
func (r Result) OK() bool {
	return r >= 200 && r < 300
}

func (r Result) String() string {
	switch r {
	case StatusSuccess:
		return "SUCCESS"
	case StatusSSInfo:
		return "SS_INFO"
	case StatusData:
		return "DATA"
	case StatusAck:
		return "ACK"
	case StatusBadRequest:
		return "BAD_REQ"
	case StatusDenied:
		return "DENIED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusExists:
		return "EXISTS"
	case StatusWordOOR:
		return "WORD_OOR"
	case StatusSentenceOOR:
		return "SENT_OOR"
	case StatusLocked:
		return "LOCKED"
	case StatusFolderMissing:
		return "FOLDER_MISSING"
	case StatusFolderExists:
		return "FOLDER_EXISTS"
	case StatusChkNotFound:
		return "CHK_NOT_FOUND"
	case StatusNoRequests:
		return "NO_REQUESTS"
	case StatusReqNotFound:
		return "REQ_NOT_FOUND"
	case StatusServerError:
		return "SERVER_ERR"
	case StatusUnavailable:
		return "UNAVAILABLE"
	default:
		return "NONE"
	}
}

// Access masks carried in the Flags field for ACL and access-request
// operations. Write access always implies read.
const (
	AccessRead  = 1 << 0
	AccessWrite = 1 << 1
)

// VIEW flags carried in the Flags field.
const (
	ViewAll  = 1 << 0 // include files the requester cannot access
	ViewLong = 1 << 1 // detailed listing with refreshed stats
)

// RESPOND_REQUEST decisions carried in the Flags field.
const (
	RespondDeny    = 0
	RespondApprove = 1
)

// CommitToken ends an interactive edit session. It is matched as a whole
// payload, never as a word inside an insert.
const CommitToken = "ETIRW"

// Message is one frame. The zero value is a valid (empty) frame.
//
// String fields longer than their wire width are truncated on encode;
// Data longer than MaxData is truncated and DataLen clamped.
type Message struct {
	Op         Opcode
	Username   string
	Filename   string
	Folder     string
	Checkpoint string
	Sentence   int32
	WordIndex  int32
	Flags      int32
	RequestID  int32
	Data       []byte
	Result     Result
	NodeIP     string
	NodePort   int32
}

// SetData replaces the payload with s.
func (m *Message) SetData(s string) {
	m.Data = []byte(s)
}

// DataString returns the payload as a string.
func (m *Message) DataString() string {
	return string(m.Data)
}

// Reply builds a response frame for m with the given result and
// human-readable payload. Request identity fields are echoed so the peer
// can correlate.
func (m *Message) Reply(result Result, data string) *Message {
	return &Message{
		Op:         m.Op,
		Username:   m.Username,
		Filename:   m.Filename,
		Folder:     m.Folder,
		Checkpoint: m.Checkpoint,
		RequestID:  m.RequestID,
		Result:     result,
		Data:       []byte(data),
	}
}

// Referral builds an SS_INFO response pointing the client at a node.
func (m *Message) Referral(ip string, port int32) *Message {
	r := m.Reply(StatusSSInfo, "")
	r.NodeIP = ip
	r.NodePort = port
	return r
}
