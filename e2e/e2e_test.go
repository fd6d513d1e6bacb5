package e2e

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/eyetrack/internal/app"
	"github.com/ayusman/eyetrack/internal/capture"
	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/geom"
	"github.com/ayusman/eyetrack/internal/landmark"
	"github.com/ayusman/eyetrack/internal/server"
	"github.com/ayusman/eyetrack/internal/store"
	"github.com/ayusman/eyetrack/testdata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	mock := detector.NewMockDetector()
	mock.SetDetections(detector.Detection{
		Rect:       geom.FromImage(testdata.FaceRect),
		Confidence: 0.9,
		Scored:     true,
	})
	loc := detector.NewLocator([]*detector.Handle{
		detector.MockHandle(detector.NeuralPrimary, nil),
		detector.MockHandle(detector.NeuralLight, mock),
		detector.MockHandle(detector.Cascade, nil),
	}, 0, log)
	eng := engine.New(engine.DefaultConfig(),
		engine.WithLogger(log),
		engine.WithLocator(loc),
		engine.WithEstimator(landmark.NewEstimator(log)),
	)

	frames := testdata.FaceSequence(6, 4)
	defer testdata.CloseAll(frames)
	cam := capture.NewMockCamera(frames, true)

	application := app.New(app.Config{
		Store:  s,
		Camera: cam,
		Record: true,
		Logger: log,
	}, eng)
	defer application.Close()

	ts := httptest.NewServer(server.New(server.Config{
		Tracker: application,
		Store:   s,
		Logger:  log,
	}))
	defer ts.Close()
	client := ts.Client()

	get := func(t *testing.T, path string, v any) int {
		t.Helper()
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		defer resp.Body.Close()
		if v != nil && resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
		}
		return resp.StatusCode
	}
	post := func(t *testing.T, path, body string, v any) int {
		t.Helper()
		resp, err := client.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		defer resp.Body.Close()
		if v != nil && resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
		}
		return resp.StatusCode
	}

	t.Run("NoResultBeforeStart", func(t *testing.T) {
		if code := get(t, "/api/result", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("TrackFrames", func(t *testing.T) {
		deadline := time.Now().Add(5 * time.Second)
		for cam.Reads() < 3 && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}

		var res struct {
			FaceDetected bool      `json:"face_detected"`
			FaceRect     geom.Rect `json:"face_rect"`
			Backend      string    `json:"backend"`
			Timestamp    int64     `json:"timestamp"`
		}
		if code := get(t, "/api/result", &res); code != http.StatusOK {
			t.Fatalf("GET /api/result status = %d", code)
		}
		if !res.FaceDetected || res.Backend != "yunet" || res.Timestamp == 0 {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("SwitchBackend", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/backend", strings.NewReader(`{"backend":"yunet"}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/backend error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		if application.DetectorBackend() != detector.NeuralLight {
			t.Errorf("DetectorBackend() = %v, want yunet", application.DetectorBackend())
		}
	})

	var calibrationID string
	t.Run("Calibrate", func(t *testing.T) {
		if code := post(t, "/api/calibration/start", "", nil); code != http.StatusOK {
			t.Fatalf("start status = %d", code)
		}
		for i := 0; i < 4; i++ {
			body := fmt.Sprintf(`{"x":%d,"y":%d}`, 100+i*100, 100+i*50)
			if code := post(t, "/api/calibration/point", body, nil); code != http.StatusOK {
				t.Fatalf("point %d status = %d", i, code)
			}
		}
		var fin struct {
			Valid bool   `json:"valid"`
			ID    string `json:"id"`
		}
		if code := post(t, "/api/calibration/finish", "", &fin); code != http.StatusOK {
			t.Fatalf("finish status = %d", code)
		}
		if !fin.Valid || fin.ID == "" {
			t.Fatalf("finish = %+v", fin)
		}
		calibrationID = fin.ID

		var latest store.Calibration
		if code := get(t, "/api/calibrations/latest", &latest); code != http.StatusOK {
			t.Fatalf("latest status = %d", code)
		}
		if latest.ID != calibrationID || len(latest.Points) != 4 {
			t.Errorf("latest = %+v", latest)
		}
	})

	sess, ok := application.Session()
	if !ok {
		t.Fatal("recording session should be active")
	}
	application.Stop()

	t.Run("RecordedSession", func(t *testing.T) {
		var got store.Session
		if code := get(t, "/api/sessions/"+sess.ID, &got); code != http.StatusOK {
			t.Fatalf("GET session status = %d", code)
		}
		if got.Active() {
			t.Error("session should be ended after Stop()")
		}

		var samples struct {
			Samples []store.Sample `json:"samples"`
		}
		if code := get(t, "/api/sessions/"+sess.ID+"/samples", &samples); code != http.StatusOK {
			t.Fatalf("GET samples status = %d", code)
		}
		if len(samples.Samples) < 3 {
			t.Fatalf("recorded %d samples, want at least 3", len(samples.Samples))
		}
		for i, smp := range samples.Samples {
			if smp.FrameIndex != i {
				t.Errorf("sample %d FrameIndex = %d", i, smp.FrameIndex)
			}
			if !smp.FaceDetected {
				t.Errorf("sample %d should have a face", i)
			}
		}
	})
}
