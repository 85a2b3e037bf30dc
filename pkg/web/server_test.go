package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/menta2k/photo-translator/pkg/camera"
	"github.com/menta2k/photo-translator/pkg/events"
	"github.com/menta2k/photo-translator/pkg/types"
	"github.com/menta2k/photo-translator/pkg/workflow"
)

type staticRecognizer struct {
	text string
}

func (r staticRecognizer) Recognize(ctx context.Context, img image.Image) (types.RecognitionResult, error) {
	return types.RecognitionResult{Text: r.text}, nil
}

func newTestServer(t *testing.T, device camera.Device) *Server {
	t.Helper()
	c, err := workflow.New(workflow.Config{
		Device:     device,
		Recognizer: staticRecognizer{text: "kaixo"},
		Bus:        events.NewBus(100),
	})
	if err != nil {
		t.Fatalf("workflow.New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return NewServer(c, Options{})
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{uint8(3 * x), uint8(4 * y), 90, 255})
		}
	}
	return img
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: request error: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d (body %s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func TestWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t, camera.NewStillDevice(testImage()))

	resp, body := do(t, s, "POST", "/api/start", nil)
	expectStatus(t, resp, body, http.StatusOK)

	for _, stage := range []string{"capture", "adjust"} {
		resp, body = do(t, s, "POST", "/api/advance", StageRequest{Stage: stage})
		expectStatus(t, resp, body, http.StatusOK)
	}

	resp, body = do(t, s, "PUT", "/api/adjust", map[string]int{"brightness_slider": 50, "contrast_slider": 20})
	expectStatus(t, resp, body, http.StatusOK)
	var st workflow.State
	json.Unmarshal(body, &st)
	if st.Params.Brightness != 0.5 || st.Params.Contrast != 0.2 || st.Params.Saturation != -1 {
		t.Errorf("params = %+v", st.Params)
	}

	resp, body = do(t, s, "POST", "/api/advance", StageRequest{Stage: "crop"})
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = do(t, s, "PUT", "/api/selection", map[string]float64{
		"x": 10, "y": 10, "w": 20, "h": 10, "display_width": 40, "display_height": 30,
	})
	expectStatus(t, resp, body, http.StatusOK)
	var sel struct {
		Region types.CropRegion `json:"region"`
	}
	json.Unmarshal(body, &sel)
	if sel.Region != (types.CropRegion{X: 20, Y: 20, Width: 40, Height: 20}) {
		t.Errorf("region = %+v", sel.Region)
	}

	resp, body = do(t, s, "GET", "/api/image/adjusted?format=png&overlay=true", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}

	resp, body = do(t, s, "POST", "/api/advance", StageRequest{Stage: "recognize"})
	expectStatus(t, resp, body, http.StatusOK)
	json.Unmarshal(body, &st)
	if st.Stage != "recognize" || st.Result == nil || st.Result.Text != "kaixo" {
		t.Fatalf("state = %+v", st)
	}

	resp, body = do(t, s, "GET", "/api/image/cropped?format=webp", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/webp" {
		t.Errorf("content type = %q", ct)
	}

	resp, body = do(t, s, "GET", "/api/events?since=0", nil)
	expectStatus(t, resp, body, http.StatusOK)
	var list []events.Event
	json.Unmarshal(body, &list)
	if len(list) == 0 || list[len(list)-1].Type != events.TypeRecognition {
		t.Errorf("unexpected events %+v", list)
	}

	resp, body = do(t, s, "POST", "/api/retreat", StageRequest{Stage: "setup"})
	expectStatus(t, resp, body, http.StatusOK)
	var restarted workflow.State
	json.Unmarshal(body, &restarted)
	if restarted.Stage != "setup" || restarted.Result != nil {
		t.Errorf("state after retreat to setup = %+v", restarted)
	}
}

func TestRejectedRequests(t *testing.T) {
	s := newTestServer(t, camera.NewStillDevice(testImage()))

	resp, body := do(t, s, "POST", "/api/advance", StageRequest{Stage: "capture"})
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = do(t, s, "POST", "/api/start", nil)
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = do(t, s, "POST", "/api/advance", StageRequest{Stage: "crop"})
	expectStatus(t, resp, body, http.StatusConflict)
	var errBody map[string]string
	json.Unmarshal(body, &errBody)
	if errBody["kind"] != string(workflow.KindInvalidRequest) || errBody["error"] == "" {
		t.Errorf("error body = %+v", errBody)
	}

	resp, body = do(t, s, "POST", "/api/advance", StageRequest{Stage: "teleport"})
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = do(t, s, "POST", "/api/translate", nil)
	expectStatus(t, resp, body, http.StatusConflict)

	resp, body = do(t, s, "GET", "/api/image/adjusted", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = do(t, s, "GET", "/api/events?since=abc", nil)
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = do(t, s, "GET", "/ws/events", nil)
	expectStatus(t, resp, body, http.StatusUpgradeRequired)
}

func TestBlockedWorkflow(t *testing.T) {
	device := camera.NewMockDevice(testImage())
	device.Missing = true
	s := newTestServer(t, device)

	resp, body := do(t, s, "POST", "/api/start", nil)
	expectStatus(t, resp, body, http.StatusLocked)

	resp, body = do(t, s, "GET", "/api/state", nil)
	expectStatus(t, resp, body, http.StatusOK)
	var st workflow.State
	json.Unmarshal(body, &st)
	if !st.Blocked || st.BlockReason == "" {
		t.Fatalf("state = %+v", st)
	}

	resp, body = do(t, s, "POST", "/api/restart", nil)
	expectStatus(t, resp, body, http.StatusLocked)
}
