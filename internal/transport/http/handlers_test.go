package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "gadevtools/internal/errors"
	"gadevtools/internal/shared/testutil"
)

func newErrorHandler(t *testing.T) *apierrors.ErrorHandler {
	logger, _ := testutil.NewTestLogger(t)
	return apierrors.NewErrorHandler(logger, false)
}

// serve runs a single request through a router with the given route.
func serve(t *testing.T, method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, body io.Reader) apierrors.ProblemDetails {
	t.Helper()
	var problem apierrors.ProblemDetails
	require.NoError(t, json.NewDecoder(body).Decode(&problem))
	return problem
}

// MockPageRenderer is a mock implementation of PageRenderer
type MockPageRenderer struct {
	mock.Mock
}

func (m *MockPageRenderer) RenderPage(ctx context.Context, w io.Writer, project, page string, data map[string]interface{}) (bool, error) {
	args := m.Called(project, page, data)
	io.WriteString(w, args.String(0))
	return args.Bool(1), args.Error(2)
}

func (m *MockPageRenderer) RenderTemplate(ctx context.Context, w io.Writer, name string, data interface{}) error {
	args := m.Called(name, data)
	io.WriteString(w, args.String(0))
	return args.Error(1)
}
