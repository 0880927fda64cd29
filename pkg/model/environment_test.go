package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quintagroup/odoorpc/pkg/errors"
)

func TestCommitBatchesFieldsIntoOneWrite(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)
	rs, err := m.Browse(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, rs.Set(ctx, "name", "Renamed"))
	require.NoError(t, rs.Set(ctx, "email", "new@example.com"))
	require.NoError(t, rs.Set(ctx, "age", 43))
	assert.Equal(t, 0, rpc.countCalls("write"))
	assert.Equal(t, []RecordRef{{Model: "res.partner", ID: 1}}, env.Dirty())

	require.NoError(t, env.Commit(ctx))

	assert.Equal(t, 1, rpc.countCalls("write"))
	call, ok := rpc.lastCall("write")
	require.True(t, ok)
	assert.Equal(t, []interface{}{int64(1)}, call.Args[0])
	values, ok := call.Args[1].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Renamed", values["name"])
	assert.Equal(t, "new@example.com", values["email"])
	assert.Equal(t, int64(43), values["age"])
	assert.Empty(t, env.Dirty())
}

func TestCommitWritesOncePerRecord(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)
	rs, err := m.Browse(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, rs.Set(ctx, "name", "Both"))
	assert.Len(t, env.Dirty(), 2)

	require.NoError(t, env.Commit(ctx))
	assert.Equal(t, 2, rpc.countCalls("write"))
}

func TestCommitMergesHandlesOfSameRecord(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)

	first, err := m.Browse(ctx, 1)
	require.NoError(t, err)
	second, err := m.Browse(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, first.Set(ctx, "name", "One"))
	require.NoError(t, second.Set(ctx, "email", "two@example.com"))
	assert.Equal(t, []RecordRef{{Model: "res.partner", ID: 1}}, env.Dirty())

	require.NoError(t, env.Commit(ctx))
	assert.Equal(t, 1, rpc.countCalls("write"))

	call, ok := rpc.lastCall("write")
	require.True(t, ok)
	values := call.Args[1].(map[string]interface{})
	assert.Equal(t, "One", values["name"])
	assert.Equal(t, "two@example.com", values["email"])
}

func TestCommitReconcilesCache(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)
	rs, err := m.Browse(ctx, 1)
	require.NoError(t, err)

	name, err := rs.String(ctx, "name")
	require.NoError(t, err)
	require.Equal(t, "Partner", name)

	require.NoError(t, rs.Set(ctx, "name", "Renamed"))

	// Readers see the pre-commit value while the assignment is staged.
	name, err = rs.String(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Partner", name)

	require.NoError(t, env.Commit(ctx))

	name, err = rs.String(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", name)
}

func TestCommitFailureKeepsRemainderDirty(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	inner := rpc.handler
	rpc.handler = func(model, method string, args []interface{}) (interface{}, error) {
		if method == "write" {
			return nil, errors.New(errors.ErrorTypeRPC, "server rejected write")
		}
		return inner(model, method, args)
	}

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)
	rs, err := m.Browse(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, rs.Set(ctx, "name", "Fails"))

	err = env.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRPC))
	assert.Equal(t, 1, rpc.countCalls("write"))

	// The failed record and the not-yet-attempted one stay dirty.
	assert.NotEmpty(t, env.Dirty())

	// The failed record's staged values were already drained into the
	// cache, so a retry writes only the never-attempted record.
	rpc.handler = inner
	require.NoError(t, env.Commit(ctx))
	assert.Equal(t, 2, rpc.countCalls("write"))
	call, ok := rpc.lastCall("write")
	require.True(t, ok)
	assert.Equal(t, []interface{}{int64(2)}, call.Args[0])
	assert.Empty(t, env.Dirty())
}

func TestInvalidateDiscardsWithoutWriting(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)
	rs, err := m.Browse(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, rs.Set(ctx, "name", "Discarded"))
	require.True(t, env.IsDirty(RecordRef{Model: "res.partner", ID: 1}))

	env.Invalidate()

	assert.Empty(t, env.Dirty())
	require.NoError(t, env.Commit(ctx))
	assert.Equal(t, 0, rpc.countCalls("write"))

	name, err := rs.String(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Partner", name)
}

func TestAutoCommitWritesImmediately(t *testing.T) {
	env, rpc := newTestEnv(t)
	env.SetAutoCommit(true)
	ctx := context.Background()

	m, err := env.Model(ctx, "res.partner")
	require.NoError(t, err)
	rs, err := m.Browse(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, rs.Set(ctx, "name", "Now"))
	assert.Equal(t, 1, rpc.countCalls("write"))
	assert.Empty(t, env.Dirty())
}

func TestDerivedEnvironmentSharesState(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	derived := env.WithContext(map[string]interface{}{"lang": "de_DE"})
	assert.Equal(t, "de_DE", derived.Lang())
	assert.Equal(t, "", env.Lang())

	t.Run("registry is shared", func(t *testing.T) {
		_, err := env.Model(ctx, "res.partner")
		require.NoError(t, err)
		_, err = derived.Model(ctx, "res.partner")
		require.NoError(t, err)
		assert.Equal(t, 1, rpc.countCalls("fields_get"))
	})

	t.Run("dirty set is shared", func(t *testing.T) {
		m, err := derived.Model(ctx, "res.partner")
		require.NoError(t, err)
		rs, err := m.Browse(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, rs.Set(ctx, "name", "Shared"))

		assert.True(t, env.IsDirty(RecordRef{Model: "res.partner", ID: 1}))
		require.NoError(t, env.Commit(ctx))
		assert.Empty(t, derived.Dirty())
	})
}

func TestRefResolvesExternalIdentifier(t *testing.T) {
	env, rpc := newTestEnv(t)
	ctx := context.Background()

	inner := rpc.handler
	rpc.handler = func(model, method string, args []interface{}) (interface{}, error) {
		if method == "xmlid_to_res_model_res_id" {
			assert.Equal(t, "base.main_company", args[0])
			return []interface{}{"res.company", float64(1)}, nil
		}
		return inner(model, method, args)
	}

	rs, err := env.Ref(ctx, "base.main_company")
	require.NoError(t, err)
	assert.Equal(t, "res.company", rs.Model().Name())
	assert.Equal(t, int64(1), rs.ID())

	call, ok := rpc.lastCall("xmlid_to_res_model_res_id")
	require.True(t, ok)
	assert.Equal(t, "ir.model.data", call.Model)

	t.Run("unknown identifier", func(t *testing.T) {
		rpc.handler = func(model, method string, args []interface{}) (interface{}, error) {
			if method == "xmlid_to_res_model_res_id" {
				return []interface{}{false, false}, nil
			}
			return inner(model, method, args)
		}
		_, err := env.Ref(ctx, "base.missing")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestUserRecord(t *testing.T) {
	rpc := &mockTransport{}
	rpc.handler = func(model, method string, args []interface{}) (interface{}, error) {
		switch method {
		case "fields_get":
			return map[string]interface{}{
				"login": map[string]interface{}{"type": "char", "string": "Login"},
				"name":  map[string]interface{}{"type": "char", "string": "Name"},
			}, nil
		case "read":
			return []interface{}{map[string]interface{}{
				"id": float64(2), "login": "admin", "name": "Administrator",
			}}, nil
		}
		return nil, nil
	}
	env := NewEnvironment(rpc, "test_db", 2, nil, zap.NewNop())

	user, err := env.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.ID())

	login, err := user.String(context.Background(), "login")
	require.NoError(t, err)
	assert.Equal(t, "admin", login)
}
