package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTuple(t *testing.T) {
	values := map[string]interface{}{"name": "New"}

	tests := []struct {
		name string
		cmd  Command
		want []interface{}
	}{
		{"create", CmdCreate(values), []interface{}{0, 0, values}},
		{"update", CmdUpdate(5, values), []interface{}{1, int64(5), values}},
		{"delete", CmdDelete(5), []interface{}{2, int64(5)}},
		{"unlink", CmdUnlink(5), []interface{}{3, int64(5)}},
		{"link", CmdLink(5), []interface{}{4, int64(5)}},
		{"clear", CmdClear(), []interface{}{5}},
		{"replace", CmdReplace([]int64{1, 2}), []interface{}{6, 0, []interface{}{int64(1), int64(2)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.Tuple())
		})
	}
}

func TestCommandValidate(t *testing.T) {
	valid := []Command{
		CmdCreate(map[string]interface{}{}),
		CmdUpdate(1, map[string]interface{}{}),
		CmdDelete(1),
		CmdUnlink(1),
		CmdLink(1),
		CmdClear(),
		CmdReplace(nil),
	}
	for _, c := range valid {
		require.NoError(t, c.validate(), "op %d", c.Op)
	}

	invalid := []Command{
		{Op: OpCreate},
		{Op: OpUpdate, ID: 1},
		{Op: OpUpdate, Values: map[string]interface{}{}},
		{Op: OpDelete},
		{Op: OpUnlink, ID: -1},
		{Op: OpLink},
		{Op: 42},
	}
	for _, c := range invalid {
		require.Error(t, c.validate(), "op %d", c.Op)
	}
}

func TestApplyCommands(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int64
		commands []Command
		want     []int64
	}{
		{"link appends", []int64{1}, []Command{CmdLink(2)}, []int64{1, 2}},
		{"link is idempotent", []int64{1, 2}, []Command{CmdLink(2)}, []int64{1, 2}},
		{"unlink removes", []int64{1, 2}, []Command{CmdUnlink(1)}, []int64{2}},
		{"delete removes", []int64{1, 2}, []Command{CmdDelete(2)}, []int64{1}},
		{"clear empties", []int64{1, 2}, []Command{CmdClear()}, nil},
		{"replace substitutes", []int64{1}, []Command{CmdReplace([]int64{7, 8})}, []int64{7, 8}},
		{"create leaves the snapshot", []int64{1}, []Command{CmdCreate(map[string]interface{}{})}, []int64{1}},
		{
			"sequences apply in order",
			[]int64{1, 2},
			[]Command{CmdClear(), CmdLink(3), CmdLink(4), CmdUnlink(3)},
			[]int64{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyCommands(tt.ids, tt.commands))
		})
	}
}
