package proto

// FrameHeaderSize: 4-byte big-endian payload length.
const FrameHeaderSize = 4

// SizePrefixLen: 8-byte big-endian file size sent ahead of a payload stream.
const SizePrefixLen = 8

// MaxFrameLength 16MiB; checked before allocating the receive buffer.
const MaxFrameLength = 16 * 1024 * 1024

// Control vocabulary, client -> server.
const (
	CmdAuth = "AUTH"
	CmdList = "LIST"
	CmdGet  = "GET"
	CmdPut  = "PUT"
	CmdQuit = "QUIT"
)

// Control vocabulary, server -> client.
const (
	RespAuthOK   = "AUTH_OK"
	RespAuthFail = "AUTH_FAIL"
	RespOK       = "OK"
	RespBye      = "BYE"
	RespErr      = "ERR"
)

// ERR reasons.
const (
	ReasonBadName    = "BadName"
	ReasonNotFound   = "NotFound"
	ReasonUnknownCmd = "UnknownCmd"
	ReasonListFailed = "ListFailed"
)
