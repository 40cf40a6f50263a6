package execute

import (
	"context"
	"devecho-server/runner"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeRunner struct {
	result *runner.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, language, code string) (*runner.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func postExecute(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleExecute_Success(t *testing.T) {
	handler := HandleExecute(&fakeRunner{
		result: &runner.Result{Success: true, Output: "hello\n", Language: "python"},
	})

	rec := postExecute(t, handler, `{"language":"python","code":"print('hello')"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result runner.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.Output != "hello\n" || result.Language != "python" {
		t.Errorf("result = %+v", result)
	}
}

func TestHandleExecute_RunnerFailureIsResultPayload(t *testing.T) {
	handler := HandleExecute(&fakeRunner{err: fmt.Errorf("runtime is unknown")})

	rec := postExecute(t, handler, `{"language":"cobol","code":"DISPLAY 'HI'."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (failures are result payloads)", rec.Code)
	}

	var result runner.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.Contains(result.Output, "runtime is unknown") {
		t.Errorf("Output = %q, want the runner error", result.Output)
	}
	if result.Language != "cobol" {
		t.Errorf("Language = %q", result.Language)
	}
}

func TestHandleExecute_InvalidJSON(t *testing.T) {
	handler := HandleExecute(&fakeRunner{})

	rec := postExecute(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleExecute_MissingFields(t *testing.T) {
	handler := HandleExecute(&fakeRunner{})

	for _, body := range []string{`{}`, `{"language":"python"}`, `{"code":"pass"}`} {
		rec := postExecute(t, handler, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status for %s = %d, want 400", body, rec.Code)
		}
	}
}
