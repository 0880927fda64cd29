// Package model implements the environment and dynamic record-proxy layer of
// the client: schema discovery, model proxy generation, local write buffering
// and the command encoding for relational field updates.
package model

import (
	"github.com/quintagroup/odoorpc/pkg/errors"
)

// CommandOp identifies one relational update command. The numeric values are
// the wire protocol's command codes and must not change.
type CommandOp int

const (
	// OpCreate creates a related record from values and links it
	OpCreate CommandOp = 0
	// OpUpdate updates a linked related record with values
	OpUpdate CommandOp = 1
	// OpDelete unlinks and deletes a related record
	OpDelete CommandOp = 2
	// OpUnlink removes the link, keeping the related record
	OpUnlink CommandOp = 3
	// OpLink links an existing related record
	OpLink CommandOp = 4
	// OpClear removes all links
	OpClear CommandOp = 5
	// OpReplace replaces all links with the given id list
	OpReplace CommandOp = 6
)

// Command is one change to a relational field's related-record collection.
// A sequence of commands is staged locally by x2many field assignments and
// encoded into wire tuples at write time.
type Command struct {
	Op     CommandOp
	ID     int64
	Values map[string]interface{}
	IDs    []int64
}

// CmdCreate creates a related record with the given values and links it.
func CmdCreate(values map[string]interface{}) Command {
	return Command{Op: OpCreate, Values: values}
}

// CmdUpdate updates the linked related record id with the given values.
func CmdUpdate(id int64, values map[string]interface{}) Command {
	return Command{Op: OpUpdate, ID: id, Values: values}
}

// CmdDelete unlinks and deletes the related record id.
func CmdDelete(id int64) Command {
	return Command{Op: OpDelete, ID: id}
}

// CmdUnlink removes the link to the related record id without deleting it.
func CmdUnlink(id int64) Command {
	return Command{Op: OpUnlink, ID: id}
}

// CmdLink links the existing related record id.
func CmdLink(id int64) Command {
	return Command{Op: OpLink, ID: id}
}

// CmdClear removes all links.
func CmdClear() Command {
	return Command{Op: OpClear}
}

// CmdReplace replaces all links with the given id list.
func CmdReplace(ids []int64) Command {
	return Command{Op: OpReplace, IDs: ids}
}

// Tuple encodes the command into its wire form. The shapes are fixed by the
// server protocol: (0,0,values) (1,id,values) (2,id) (3,id) (4,id) (5,)
// (6,0,ids).
func (c Command) Tuple() []interface{} {
	switch c.Op {
	case OpCreate:
		return []interface{}{int(OpCreate), 0, c.Values}
	case OpUpdate:
		return []interface{}{int(OpUpdate), c.ID, c.Values}
	case OpDelete, OpUnlink, OpLink:
		return []interface{}{int(c.Op), c.ID}
	case OpClear:
		return []interface{}{int(OpClear)}
	case OpReplace:
		ids := make([]interface{}, len(c.IDs))
		for i, id := range c.IDs {
			ids[i] = id
		}
		return []interface{}{int(OpReplace), 0, ids}
	}
	return nil
}

// validate rejects command shapes the server would refuse.
func (c Command) validate() error {
	switch c.Op {
	case OpCreate:
		if c.Values == nil {
			return errors.New(errors.ErrorTypeValidation, "create command requires values")
		}
	case OpUpdate:
		if c.ID <= 0 {
			return errors.New(errors.ErrorTypeValidation, "update command requires a record id")
		}
		if c.Values == nil {
			return errors.New(errors.ErrorTypeValidation, "update command requires values")
		}
	case OpDelete, OpUnlink, OpLink:
		if c.ID <= 0 {
			return errors.Newf(errors.ErrorTypeValidation, "command %d requires a record id", c.Op)
		}
	case OpClear, OpReplace:
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown command %d", c.Op)
	}
	return nil
}

// apply resolves the command against a cached id snapshot. Newly created
// related records have no locally known id, so create commands leave the
// snapshot untouched until the next read refreshes it.
func (c Command) apply(ids []int64) []int64 {
	switch c.Op {
	case OpCreate:
		return ids
	case OpUpdate:
		return ids
	case OpDelete, OpUnlink:
		out := ids[:0:0]
		for _, id := range ids {
			if id != c.ID {
				out = append(out, id)
			}
		}
		return out
	case OpLink:
		for _, id := range ids {
			if id == c.ID {
				return ids
			}
		}
		return append(append([]int64(nil), ids...), c.ID)
	case OpClear:
		return nil
	case OpReplace:
		return append([]int64(nil), c.IDs...)
	}
	return ids
}

// applyCommands resolves a staged command sequence into the final cached
// snapshot of related ids.
func applyCommands(ids []int64, commands []Command) []int64 {
	out := append([]int64(nil), ids...)
	for _, c := range commands {
		out = c.apply(out)
	}
	return out
}

// encodeCommands converts a staged command sequence into wire tuples.
func encodeCommands(commands []Command) []interface{} {
	tuples := make([]interface{}, 0, len(commands))
	for _, c := range commands {
		tuples = append(tuples, c.Tuple())
	}
	return tuples
}
