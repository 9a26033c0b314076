package logger

// Standard field keys for structured logging. Use these consistently so
// coordinator and node logs can be aggregated and queried together.
const (
	// Protocol & operation
	KeyOpcode    = "opcode"     // wire opcode name: CREATE, READ, WRITE, ...
	KeyResult    = "result"     // wire result name: SUCCESS, DENIED, ...
	KeyRequestID = "request_id" // access-request id
	KeySessionID = "session_id" // edit-session correlation id

	// Subjects
	KeyUser     = "user"     // requesting username
	KeyFile     = "file"     // target filename
	KeyFolder   = "folder"   // folder path ("" = root)
	KeyTag      = "tag"      // checkpoint tag
	KeySentence = "sentence" // sentence index
	KeyWord     = "word"     // word index

	// Cluster
	KeyNodeID   = "node_id"   // storage node id
	KeyNodeAddr = "node_addr" // storage node ip:port
	KeyClient   = "client"    // client remote address

	// Misc
	KeySize  = "size"  // byte size
	KeyError = "error" // error detail
)
