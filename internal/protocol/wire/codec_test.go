package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 5168, FrameSize)
	assert.Len(t, Encode(&Message{}), FrameSize)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := &Message{
		Op:         OpWrite,
		Username:   "alice",
		Filename:   "notes.txt",
		Folder:     "projects/go",
		Checkpoint: "v1",
		Sentence:   3,
		WordIndex:  7,
		Flags:      AccessRead | AccessWrite,
		RequestID:  42,
		Data:       []byte("hello world."),
		Result:     StatusData,
		NodeIP:     "192.168.1.10",
		NodePort:   9101,
	}

	got, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeTruncatesOversizedFields(t *testing.T) {
	m := &Message{
		Op:       OpCreate,
		Username: strings.Repeat("u", MaxName+50),
		Data:     bytes.Repeat([]byte("x"), MaxData+100),
	}

	got, err := Decode(Encode(m))
	require.NoError(t, err)
	// String fields keep a terminating NUL on the wire.
	assert.Len(t, got.Username, MaxName-1)
	assert.Len(t, got.Data, MaxData)
}

func TestDecodeRejectsBadDataLength(t *testing.T) {
	buf := Encode(&Message{Op: OpRead})
	// data_length sits right after opcode + 4 names + 4 ints.
	off := 4 + MaxName*4 + 4*4
	buf[off] = 0xff
	buf[off+1] = 0xff
	buf[off+2] = 0xff
	buf[off+3] = 0x7f

	_, err := Decode(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data length")
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := Decode(make([]byte, 100))
	require.Error(t, err)
}

func TestReadMessageResumesShortReads(t *testing.T) {
	m := &Message{Op: OpRead, Username: "bob", Filename: "doc"}
	r := iotest(Encode(m))

	got, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, m.Username, got.Username)
	assert.Equal(t, m.Filename, got.Filename)
}

// iotest yields the frame in small chunks to exercise io.ReadFull.
func iotest(frame []byte) io.Reader {
	readers := make([]io.Reader, 0, len(frame)/100+1)
	for len(frame) > 0 {
		n := 100
		if n > len(frame) {
			n = len(frame)
		}
		readers = append(readers, bytes.NewReader(frame[:n]))
		frame = frame[n:]
	}
	return io.MultiReader(readers...)
}

func TestReadMessageEOF(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	m := &Message{Op: OpSearch, Username: "carol", Data: []byte("report")}
	require.NoError(t, WriteMessage(&buf, m))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, OpSearch, got.Op)
	assert.Equal(t, "report", got.DataString())
}

func TestReply(t *testing.T) {
	req := &Message{Op: OpCreate, Username: "alice", Filename: "a.txt", RequestID: 7}
	resp := req.Reply(StatusExists, "file exists")

	assert.Equal(t, OpCreate, resp.Op)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "a.txt", resp.Filename)
	assert.Equal(t, int32(7), resp.RequestID)
	assert.Equal(t, StatusExists, resp.Result)
	assert.False(t, resp.Result.OK())
}

func TestReferral(t *testing.T) {
	req := &Message{Op: OpRead, Filename: "a.txt"}
	resp := req.Referral("10.0.0.5", 9101)

	assert.Equal(t, StatusSSInfo, resp.Result)
	assert.True(t, resp.Result.OK())
	assert.Equal(t, "10.0.0.5", resp.NodeIP)
	assert.Equal(t, int32(9101), resp.NodePort)
}

func TestAnnouncementRoundTrip(t *testing.T) {
	a := &NodeAnnouncement{
		ID:          "ss1",
		IP:          "192.168.1.20",
		ClientPort:  9101,
		ControlPort: 10101,
		Files: []AnnouncedFile{
			{Name: "root.txt"},
			{Name: "deep.txt", Folder: "projects/go"},
		},
	}

	got, err := DecodeAnnouncement(EncodeAnnouncement(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestAnnouncementValidation(t *testing.T) {
	t.Run("wrong opcode", func(t *testing.T) {
		_, err := DecodeAnnouncement(&Message{Op: OpRead})
		assert.Error(t, err)
	})
	t.Run("missing id", func(t *testing.T) {
		m := EncodeAnnouncement(&NodeAnnouncement{IP: "1.2.3.4", ClientPort: 1, ControlPort: 2})
		_, err := DecodeAnnouncement(m)
		assert.Error(t, err)
	})
	t.Run("bad ports", func(t *testing.T) {
		m := EncodeAnnouncement(&NodeAnnouncement{ID: "ss1", IP: "1.2.3.4"})
		_, err := DecodeAnnouncement(m)
		assert.Error(t, err)
	})
}

func TestOpcodeAndResultStrings(t *testing.T) {
	assert.Equal(t, "WRITE", OpWrite.String())
	assert.Equal(t, "UNKNOWN", Opcode(999).String())
	assert.Equal(t, "LOCKED", StatusLocked.String())
	assert.Equal(t, "SS_INFO", StatusSSInfo.String())
}
