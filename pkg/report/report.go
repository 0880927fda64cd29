// Package report lists and downloads the reports a server can render. It is
// a thin pass-through over the model proxy API plus one raw protocol call
// for rendering; it holds no mutation state of its own.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"

	"go.uber.org/zap"

	"github.com/quintagroup/odoorpc/pkg/errors"
	"github.com/quintagroup/odoorpc/pkg/model"
)

// reportActionModel is the server model describing printable reports.
const reportActionModel = "ir.actions.report.xml"

// Caller is the raw-call capability the render protocol needs: it re-sends
// the session credentials inside the call payload.
type Caller interface {
	Call(ctx context.Context, path string, payload map[string]interface{}) (interface{}, error)
	Database() string
	UID() int64
	Password() string
}

// Info describes one report available on the server.
type Info struct {
	Name       string `json:"name"`
	ReportName string `json:"report_name"`
	ReportType string `json:"report_type"`
}

// Service lists and downloads reports.
type Service struct {
	env    *model.Environment
	rpc    Caller
	logger *zap.Logger
}

// NewService creates a report service over an environment and its transport.
func NewService(env *model.Environment, rpc Caller, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		env:    env,
		rpc:    rpc,
		logger: logger.With(zap.String("component", "report")),
	}
}

// List returns the available reports grouped by the data model they print.
func (s *Service) List(ctx context.Context) (map[string][]Info, error) {
	reports, err := s.env.Model(ctx, reportActionModel)
	if err != nil {
		return nil, err
	}

	ids, err := reports.Search(ctx, nil)
	if err != nil {
		return nil, err
	}
	rows, err := reports.Read(ctx, ids, []string{"name", "model", "report_name", "report_type"})
	if err != nil {
		return nil, err
	}

	out := make(map[string][]Info)
	for _, row := range rows {
		target, _ := row["model"].(string)
		info := Info{}
		info.Name, _ = row["name"].(string)
		info.ReportName, _ = row["report_name"].(string)
		info.ReportType, _ = row["report_type"].(string)
		out[target] = append(out[target], info)
	}
	return out, nil
}

// Download renders a report for the given record ids and returns the
// decoded document. The render call transports the document base64-encoded
// inside a nested result payload; a reply without it is a data error, not a
// remote-call error.
func (s *Service) Download(ctx context.Context, name string, ids []int64) (io.Reader, error) {
	wireIDs := make([]interface{}, len(ids))
	for i, id := range ids {
		wireIDs[i] = id
	}

	result, err := s.rpc.Call(ctx, "/jsonrpc", map[string]interface{}{
		"service": "report",
		"method":  "render_report",
		"args": []interface{}{
			s.rpc.Database(),
			s.rpc.UID(),
			s.rpc.Password(),
			name,
			wireIDs,
			nil,
			s.env.Context(),
		},
	})
	if err != nil {
		return nil, err
	}

	payload, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData,
			"render reply for %q is not an object", name)
	}
	encoded, ok := payload["result"].(string)
	if !ok || encoded == "" {
		return nil, errors.Newf(errors.ErrorTypeData,
			"render reply for %q carries no document", name)
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData,
			"render reply for "+name+" is not valid base64")
	}

	s.logger.Debug("report downloaded",
		zap.String("report", name),
		zap.Int("records", len(ids)),
		zap.Int("bytes", len(content)))

	return bytes.NewReader(content), nil
}
