// Package server applies parsed commands against the registry, message
// logs, and broadcast engine.
package server

import (
	"fmt"
	"log"
)

const (
	replyNoMessages    = "There are no messages on the board yet."
	replyBadMessageID  = "The message ID entered does not exist."
	replyGroupNotFound = "Group not found"
	replyGroupDenied   = "Group not found or access denied"
	replyNotGroupUser  = "Group not found or not a member"
)

func formatPost(id int, author, content string) string {
	return fmt.Sprintf("Message ID: %d | %s posted: %s", id, author, content)
}

func formatStored(id int, author, content string) string {
	return fmt.Sprintf("Message%d: %s: %s", id, author, content)
}

// dispatch interprets and applies one line from an active client. Replies
// for failed preconditions go to the sender only and mutate nothing. The
// returned bool is false when the session asked to end.
func (h *Hub) dispatch(c *Client, line string) bool {
	cmd, err := ParseLine(line)
	if err != nil {
		c.enqueue(err.Error())
		return true
	}

	r := h.registry
	switch cmd.Kind {
	case CmdJoin:
		// Registration happened at the username handshake.
		c.enqueue("You have already joined the board.")

	case CmdLeave, CmdExit:
		return false

	case CmdUsers:
		for _, name := range r.Users() {
			c.enqueue(name)
		}

	case CmdPost:
		id := r.Board().Append(c.name, cmd.Text)
		h.bcast.Deliver(r.Recipients(c), formatPost(id, c.name, cmd.Text))

	case CmdMessage:
		board := r.Board()
		if board.Len() == 0 {
			c.enqueue(replyNoMessages)
			break
		}
		rec, err := board.Get(cmd.MessageID)
		if err != nil {
			c.enqueue(replyBadMessageID)
			break
		}
		c.enqueue(formatStored(rec.ID, rec.Author, rec.Content))

	case CmdGroups:
		c.enqueue("Available Groups:")
		for _, g := range r.ListGroups() {
			c.enqueue(fmt.Sprintf("ID: %d - %s", g.ID, g.Name))
		}

	case CmdGroupJoin:
		info, members, err := r.JoinGroup(c, cmd.Group)
		if err != nil {
			c.enqueue(replyGroupNotFound)
			break
		}
		c.enqueue(fmt.Sprintf("Joined group %s", info.Name))
		h.bcast.Deliver(members, fmt.Sprintf("%s has joined group %s", c.name, info.Name))

	case CmdGroupLeave:
		info, members, err := r.LeaveGroup(c, cmd.Group)
		if err != nil {
			c.enqueue(replyNotGroupUser)
			break
		}
		c.enqueue(fmt.Sprintf("Left group %s", info.Name))
		h.bcast.Deliver(members, fmt.Sprintf("%s has left group %s", c.name, info.Name))

	case CmdGroupUsers:
		_, names, err := r.GroupMembers(c, cmd.Group)
		if err != nil {
			c.enqueue(replyGroupDenied)
			break
		}
		for _, name := range names {
			c.enqueue(name)
		}

	case CmdGroupPost:
		info, glog, recipients, err := r.GroupForPost(c, cmd.Group)
		if err != nil {
			c.enqueue(replyGroupDenied)
			break
		}
		id := glog.Append(c.name, cmd.Text)
		h.bcast.Deliver(recipients, fmt.Sprintf("[%s] %s", info.Name, formatPost(id, c.name, cmd.Text)))

	case CmdGroupMessage:
		info, glog, err := r.GroupLog(c, cmd.Group)
		if err != nil {
			c.enqueue(replyGroupDenied)
			break
		}
		rec, err := glog.Get(cmd.MessageID)
		if err != nil {
			c.enqueue(replyBadMessageID)
			break
		}
		c.enqueue(fmt.Sprintf("[%s] %s", info.Name, formatStored(rec.ID, rec.Author, rec.Content)))

	case CmdChat:
		h.bcast.Deliver(r.Recipients(c), fmt.Sprintf("%s: %s", c.name, cmd.Text))

	default:
		log.Printf("Unhandled command kind %d from %s", cmd.Kind, c.addr)
	}
	return true
}
