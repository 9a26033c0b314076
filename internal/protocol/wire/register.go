package wire

import (
	"fmt"
	"strings"
)

// NodeAnnouncement is the typed content of a REGISTER_NODE frame.
//
// The node id rides in the username field, the advertised address in the
// folder field, and the two ports in the sentence/word integer fields; only
// the file inventory uses the data payload (one "name<TAB>folder" entry per
// line, folder omitted for root files).
type NodeAnnouncement struct {
	ID          string
	IP          string
	ClientPort  int32
	ControlPort int32
	Files       []AnnouncedFile
}

// AnnouncedFile is one entry of a node's startup inventory.
type AnnouncedFile struct {
	Name   string
	Folder string
}

// EncodeAnnouncement builds the REGISTER_NODE request frame.
func EncodeAnnouncement(a *NodeAnnouncement) *Message {
	var b strings.Builder
	for i, f := range a.Files {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Name)
		if f.Folder != "" {
			b.WriteByte('\t')
			b.WriteString(f.Folder)
		}
	}
	return &Message{
		Op:        OpRegisterNode,
		Username:  a.ID,
		Folder:    a.IP,
		Sentence:  a.ClientPort,
		WordIndex: a.ControlPort,
		Data:      []byte(b.String()),
	}
}

// DecodeAnnouncement parses a REGISTER_NODE request frame.
func DecodeAnnouncement(m *Message) (*NodeAnnouncement, error) {
	if m.Op != OpRegisterNode {
		return nil, fmt.Errorf("wire: not a REGISTER_NODE frame: %s", m.Op)
	}
	if m.Username == "" {
		return nil, fmt.Errorf("wire: node announcement missing id")
	}
	if m.Sentence <= 0 || m.WordIndex <= 0 {
		return nil, fmt.Errorf("wire: node announcement has invalid ports %d/%d", m.Sentence, m.WordIndex)
	}
	a := &NodeAnnouncement{
		ID:          m.Username,
		IP:          m.Folder,
		ClientPort:  m.Sentence,
		ControlPort: m.WordIndex,
	}
	for _, line := range strings.Split(m.DataString(), "\n") {
		if line == "" {
			continue
		}
		name, folder, _ := strings.Cut(line, "\t")
		a.Files = append(a.Files, AnnouncedFile{Name: name, Folder: folder})
	}
	return a, nil
}
