package report

import (
	"context"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quintagroup/odoorpc/pkg/errors"
	"github.com/quintagroup/odoorpc/pkg/model"
)

// fakeBackend answers both the model transport and the raw-call surface.
type fakeBackend struct {
	rawCalls   []map[string]interface{}
	renderBody interface{}
}

func (f *fakeBackend) Execute(ctx context.Context, model, method string, args ...interface{}) (interface{}, error) {
	return f.ExecuteKw(ctx, model, method, args, nil)
}

func (f *fakeBackend) ExecuteKw(ctx context.Context, m, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	switch method {
	case "fields_get":
		return map[string]interface{}{
			"name":        map[string]interface{}{"type": "char", "string": "Name"},
			"model":       map[string]interface{}{"type": "char", "string": "Model"},
			"report_name": map[string]interface{}{"type": "char", "string": "Report Name"},
			"report_type": map[string]interface{}{"type": "char", "string": "Type"},
		}, nil
	case "search":
		return []interface{}{float64(1), float64(2), float64(3)}, nil
	case "read":
		return []interface{}{
			map[string]interface{}{
				"id": float64(1), "name": "Invoice", "model": "account.invoice",
				"report_name": "account.report_invoice", "report_type": "qweb-pdf",
			},
			map[string]interface{}{
				"id": float64(2), "name": "Quotation", "model": "sale.order",
				"report_name": "sale.report_saleorder", "report_type": "qweb-pdf",
			},
			map[string]interface{}{
				"id": float64(3), "name": "Pro Forma", "model": "sale.order",
				"report_name": "sale.report_saleorder_pro_forma", "report_type": "qweb-html",
			},
		}, nil
	}
	return nil, nil
}

func (f *fakeBackend) Call(ctx context.Context, path string, payload map[string]interface{}) (interface{}, error) {
	f.rawCalls = append(f.rawCalls, payload)
	return f.renderBody, nil
}

func (f *fakeBackend) Database() string { return "prod" }
func (f *fakeBackend) UID() int64       { return 7 }
func (f *fakeBackend) Password() string { return "secret" }

func newTestService(t *testing.T) (*Service, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	env := model.NewEnvironment(backend, "prod", 7, nil, zap.NewNop())
	return NewService(env, backend, zap.NewNop()), backend
}

func TestServiceList(t *testing.T) {
	svc, _ := newTestService(t)

	byModel, err := svc.List(context.Background())
	require.NoError(t, err)

	require.Len(t, byModel, 2)
	assert.Equal(t, []Info{
		{Name: "Invoice", ReportName: "account.report_invoice", ReportType: "qweb-pdf"},
	}, byModel["account.invoice"])
	assert.Len(t, byModel["sale.order"], 2)
}

func TestServiceDownload(t *testing.T) {
	svc, backend := newTestService(t)
	document := []byte("%PDF-1.4 fake document")
	backend.renderBody = map[string]interface{}{
		"result": base64.StdEncoding.EncodeToString(document),
		"format": "pdf",
	}

	r, err := svc.Download(context.Background(), "sale.report_saleorder", []int64{4, 5})
	require.NoError(t, err)

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, document, content)

	require.Len(t, backend.rawCalls, 1)
	payload := backend.rawCalls[0]
	assert.Equal(t, "report", payload["service"])
	assert.Equal(t, "render_report", payload["method"])

	args := payload["args"].([]interface{})
	assert.Equal(t, "prod", args[0])
	assert.Equal(t, int64(7), args[1])
	assert.Equal(t, "secret", args[2])
	assert.Equal(t, "sale.report_saleorder", args[3])
	assert.Equal(t, []interface{}{int64(4), int64(5)}, args[4])
}

func TestServiceDownloadBadReplies(t *testing.T) {
	t.Run("missing document", func(t *testing.T) {
		svc, backend := newTestService(t)
		backend.renderBody = map[string]interface{}{"format": "pdf"}

		_, err := svc.Download(context.Background(), "sale.report_saleorder", []int64{4})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})

	t.Run("non-object reply", func(t *testing.T) {
		svc, backend := newTestService(t)
		backend.renderBody = "nope"

		_, err := svc.Download(context.Background(), "sale.report_saleorder", []int64{4})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})

	t.Run("invalid base64", func(t *testing.T) {
		svc, backend := newTestService(t)
		backend.renderBody = map[string]interface{}{"result": "%%%"}

		_, err := svc.Download(context.Background(), "sale.report_saleorder", []int64{4})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})
}
