package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encode serializes m into a FrameSize byte slice.
func Encode(m *Message) []byte {
	buf := make([]byte, FrameSize)
	off := 0

	putInt32 := func(v int32) {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	putString := func(s string, width int) {
		// NUL padding comes for free from the zeroed buffer.
		copy(buf[off:off+width-1], s)
		off += width
	}

	putInt32(int32(m.Op))
	putString(m.Username, MaxName)
	putString(m.Filename, MaxName)
	putString(m.Folder, MaxName)
	putString(m.Checkpoint, MaxName)
	putInt32(m.Sentence)
	putInt32(m.WordIndex)
	putInt32(m.Flags)
	putInt32(m.RequestID)

	data := m.Data
	if len(data) > MaxData {
		data = data[:MaxData]
	}
	putInt32(int32(len(data)))
	copy(buf[off:], data)
	off += MaxData

	putInt32(int32(m.Result))
	putString(m.NodeIP, MaxIP)
	putInt32(m.NodePort)

	return buf
}

// Decode parses a FrameSize byte slice into a Message.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < FrameSize {
		return nil, fmt.Errorf("wire: short frame: %d bytes, need %d", len(buf), FrameSize)
	}
	off := 0

	getInt32 := func() int32 {
		v := int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		return v
	}
	getString := func(width int) string {
		field := buf[off : off+width]
		off += width
		for i, b := range field {
			if b == 0 {
				return string(field[:i])
			}
		}
		return string(field)
	}

	m := &Message{}
	m.Op = Opcode(getInt32())
	m.Username = getString(MaxName)
	m.Filename = getString(MaxName)
	m.Folder = getString(MaxName)
	m.Checkpoint = getString(MaxName)
	m.Sentence = getInt32()
	m.WordIndex = getInt32()
	m.Flags = getInt32()
	m.RequestID = getInt32()

	dataLen := getInt32()
	if dataLen < 0 || dataLen > MaxData {
		return nil, fmt.Errorf("wire: invalid data length %d", dataLen)
	}
	m.Data = make([]byte, dataLen)
	copy(m.Data, buf[off:off+int(dataLen)])
	off += MaxData

	m.Result = Result(getInt32())
	m.NodeIP = getString(MaxIP)
	m.NodePort = getInt32()

	return m, nil
}

// ReadMessage reads exactly one frame from r. It blocks until the full
// FrameSize bytes are consumed (MSG_WAITALL semantics) or the stream fails.
// io.EOF is returned unwrapped when the peer closed before the first byte.
func ReadMessage(r io.Reader) (*Message, error) {
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wire: read frame: %w", err)
	}
	return Decode(buf)
}

// WriteMessage writes one frame to w.
func WriteMessage(w io.Writer, m *Message) error {
	if _, err := w.Write(Encode(m)); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}
