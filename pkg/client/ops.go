package client

import (
	"strings"

	"github.com/marmos91/docufs/internal/protocol/wire"
)

// Create makes a new empty file, optionally inside an existing folder.
// Placement is the coordinator's choice.
func (c *Client) Create(name, folder string) error {
	return c.CreateOn(name, folder, "")
}

// CreateOn is Create pinned to a specific storage node. An empty nodeID
// leaves the choice to the coordinator.
func (c *Client) CreateOn(name, folder, nodeID string) error {
	m := &wire.Message{Op: wire.OpCreate, Filename: name, Folder: folder}
	m.SetData(nodeID)
	_, err := c.doOK(m)
	return err
}

// Delete removes a file. Owner only.
func (c *Client) Delete(name string) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpDelete, Filename: name})
	return err
}

// Read fetches a file's content, following the referral to its node or
// accepting inline content when the coordinator serves a recovered copy.
func (c *Client) Read(name string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpRead, Filename: name})
	if err != nil {
		return "", err
	}
	switch resp.Result {
	case wire.StatusData:
		return resp.DataString(), nil
	case wire.StatusSSInfo:
		return c.readFromNode(resp, name)
	default:
		return "", opError(resp)
	}
}

func (c *Client) readFromNode(referral *wire.Message, name string) (string, error) {
	conn, err := dialNode(referral)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	req := &wire.Message{Op: wire.OpRead, Username: c.username, Filename: name}
	if err := wire.WriteMessage(conn, req); err != nil {
		return "", err
	}
	resp, err := wire.ReadMessage(conn)
	if err != nil {
		return "", err
	}
	if resp.Result != wire.StatusData {
		return "", opError(resp)
	}
	return resp.DataString(), nil
}

// Stream reads a file word by word, invoking fn for every word and for the
// end-of-sentence newline sentinels. A recovered inline copy degrades to a
// single fn call with the whole content.
func (c *Client) Stream(name string, fn func(word string)) error {
	resp, err := c.doOK(&wire.Message{Op: wire.OpStream, Filename: name})
	if err != nil {
		return err
	}
	if resp.Result == wire.StatusData {
		fn(resp.DataString())
		return nil
	}

	conn, err := dialNode(resp)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := &wire.Message{Op: wire.OpStream, Username: c.username, Filename: name}
	if err := wire.WriteMessage(conn, req); err != nil {
		return err
	}
	for {
		frame, err := wire.ReadMessage(conn)
		if err != nil {
			return err
		}
		switch frame.Result {
		case wire.StatusData:
			fn(frame.DataString())
		case wire.StatusSuccess:
			return nil
		default:
			return opError(frame)
		}
	}
}

// Undo rolls a file back to its previous committed state and returns the
// restored content.
func (c *Client) Undo(name string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpUndo, Filename: name})
	if err != nil {
		return "", err
	}
	conn, err := dialNode(resp)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	req := &wire.Message{Op: wire.OpUndo, Username: c.username, Filename: name}
	if err := wire.WriteMessage(conn, req); err != nil {
		return "", err
	}
	nresp, err := wire.ReadMessage(conn)
	if err != nil {
		return "", err
	}
	if nresp.Result != wire.StatusData {
		return "", opError(nresp)
	}
	return nresp.DataString(), nil
}

// View returns the file listing. all includes inaccessible files; long
// adds per-file details.
func (c *Client) View(all, long bool) (string, error) {
	var flags int32
	if all {
		flags |= wire.ViewAll
	}
	if long {
		flags |= wire.ViewLong
	}
	resp, err := c.doOK(&wire.Message{Op: wire.OpView, Flags: flags})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// Info returns a file's detail block.
func (c *Client) Info(name string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpInfo, Filename: name})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// ListUsers returns the user listing (active sessions marked with '*').
func (c *Client) ListUsers() (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpListUsers})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// AddAccess grants target the access mask on a file the caller owns.
func (c *Client) AddAccess(file, target string, mask int32) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpAddAccess, Filename: file, Folder: target, Flags: mask})
	return err
}

// RemAccess revokes target's access to a file the caller owns.
func (c *Client) RemAccess(file, target string) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpRemAccess, Filename: file, Folder: target})
	return err
}

// Search returns the names matching query that the caller can read.
func (c *Client) Search(query string) ([]string, error) {
	m := &wire.Message{Op: wire.OpSearch}
	m.SetData(query)
	resp, err := c.doOK(m)
	if err != nil {
		return nil, err
	}
	return strings.Split(resp.DataString(), "\n"), nil
}

// Exec runs a file's content on the coordinator host (when enabled) and
// returns the combined output.
func (c *Client) Exec(name string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpExec, Filename: name})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// CreateFolder adds a folder (and missing ancestors).
func (c *Client) CreateFolder(path string) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpCreateFolder, Folder: path})
	return err
}

// Move relocates a file into folder ("" for the root).
func (c *Client) Move(name, folder string) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpMove, Filename: name, Folder: folder})
	return err
}

// ViewFolder lists a folder's subfolders and files.
func (c *Client) ViewFolder(path string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpViewFolder, Folder: path})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// Checkpoint captures a named snapshot of a file.
func (c *Client) Checkpoint(file, tag string) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpCheckpoint, Filename: file, Checkpoint: tag})
	return err
}

// ViewCheckpoint returns a checkpoint's content.
func (c *Client) ViewCheckpoint(file, tag string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpViewCheckpoint, Filename: file, Checkpoint: tag})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// Revert rolls a file back to a checkpoint.
func (c *Client) Revert(file, tag string) error {
	_, err := c.doOK(&wire.Message{Op: wire.OpRevert, Filename: file, Checkpoint: tag})
	return err
}

// ListCheckpoints returns a file's checkpoint listing.
func (c *Client) ListCheckpoints(file string) (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpListCheckpoints, Filename: file})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// RequestAccess queues an access request and returns its id.
func (c *Client) RequestAccess(file string, mask int32) (int32, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpRequestAccess, Filename: file, Flags: mask})
	if err != nil {
		return 0, err
	}
	return resp.RequestID, nil
}

// ViewRequests lists pending requests on files the caller owns.
func (c *Client) ViewRequests() (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpViewRequests})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}

// RespondRequest approves or denies a pending request by id.
func (c *Client) RespondRequest(id int32, approve bool) error {
	flags := int32(wire.RespondDeny)
	if approve {
		flags = wire.RespondApprove
	}
	_, err := c.doOK(&wire.Message{Op: wire.OpRespondRequest, RequestID: id, Flags: flags})
	return err
}

// ListNodes returns the cluster node table.
func (c *Client) ListNodes() (string, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpListNodes})
	if err != nil {
		return "", err
	}
	return resp.DataString(), nil
}
