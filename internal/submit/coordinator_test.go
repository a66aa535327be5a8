// Copyright 2026 ApexBridge Technologies
// Tests for the submission pipeline entry point

package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/dedup"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/offline"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/report"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/transport"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/upload"
)

// fastPolicy 毫秒级退避，测试中不等待真实退避时间
func fastPolicy() transport.Policy {
	return transport.Policy{
		MaxRetries:           0,
		BaseDelay:            time.Millisecond,
		MaxDelay:             time.Millisecond,
		RetryableStatusCodes: []int{502, 503, 504, 429},
	}
}

func testCreds() transport.Credentials {
	return transport.Credentials{APIKey: "test-key", ProjectID: "proj-1"}
}

func testPayload(title string) *report.Payload {
	return &report.Payload{
		Title:       title,
		Description: "something broke",
		Report: report.Data{
			Console: []report.ConsoleEntry{
				{Level: "error", Message: "boom", Stack: "at main.go:1"},
			},
		},
	}
}

func newCoordinatorFor(endpoint string, mutate func(*Options)) *Coordinator {
	opts := Options{
		Endpoint: endpoint,
		Creds:    testCreds(),
		Policy:   fastPolicy(),
		Client:   resty.New().SetTimeout(5 * time.Second),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewCoordinator(opts)
}

func createdResponse(id string) string {
	return fmt.Sprintf(`{"success":true,"data":{"id":"%s"}}`, id)
}

func TestSubmit_Success(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "proj-1", r.Header.Get("X-Project-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var cr report.CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cr))
		assert.Equal(t, "crash on load", cr.Title)
		assert.False(t, cr.HasScreenshot)

		_, _ = w.Write([]byte(createdResponse("rep-1")))
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, nil)
	res, err := c.Submit(context.Background(), testPayload("crash on load"))
	require.NoError(t, err)
	assert.Equal(t, "rep-1", res.ReportID)
	assert.Empty(t, res.Uploads)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubmit_ConfigErrorsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		check  func(*testing.T, error)
	}{
		{
			name:   "missing endpoint",
			mutate: func(o *Options) { o.Endpoint = "" },
			check: func(t *testing.T, err error) {
				var ve *transport.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name:   "insecure endpoint",
			mutate: func(o *Options) { o.Endpoint = "http://collector.example.com/reports" },
			check: func(t *testing.T, err error) {
				var ie *transport.InsecureEndpointError
				require.ErrorAs(t, err, &ie)
			},
		},
		{
			name:   "missing api key",
			mutate: func(o *Options) { o.Creds = transport.Credentials{APIKey: "  "} },
			check: func(t *testing.T, err error) {
				assert.True(t, transport.IsAuthError(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoordinatorFor("https://collector.example.com/reports", tt.mutate)
			_, err := c.Submit(context.Background(), testPayload(tt.name))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSubmit_DuplicateWithinWindow(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(createdResponse("rep-1")))
	}))
	defer srv.Close()

	d := dedup.NewDeduplicator(time.Minute, 100, nil)
	defer d.Stop()
	c := newCoordinatorFor(srv.URL, func(o *Options) { o.Dedup = d })

	_, err := c.Submit(context.Background(), testPayload("dup"))
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), testPayload("dup"))
	require.Error(t, err)
	var de *dedup.DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "60 seconds")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "duplicate must not reach the network")
}

func TestSubmit_ConcurrentSameFingerprint(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(createdResponse("rep-1")))
	}))
	defer srv.Close()

	d := dedup.NewDeduplicator(time.Minute, 100, nil)
	defer d.Stop()
	c := newCoordinatorFor(srv.URL, func(o *Options) { o.Dedup = d })

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(context.Background(), testPayload("concurrent"))
			errs <- err
		}()
	}

	// 等第一个请求占住 in-flight 槽位后放行
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	var dupCount, okCount int
	for err := range errs {
		if err == nil {
			okCount++
			continue
		}
		var de *dedup.DuplicateError
		require.ErrorAs(t, err, &de)
		dupCount++
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, dupCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubmit_ServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"project quota exceeded"}`))
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, nil)
	_, err := c.Submit(context.Background(), testPayload("rejected"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project quota exceeded")
}

func TestSubmit_HTTPErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("title is required"))
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, nil)
	_, err := c.Submit(context.Background(), testPayload("bad request"))
	var he *transport.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Contains(t, he.Body, "title is required")
}

func TestSubmit_HTTPErrorEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, nil)
	_, err := c.Submit(context.Background(), testPayload("empty body"))
	var he *transport.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "Unknown error", he.Body)
}

func TestSubmit_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, nil)
	_, err := c.Submit(context.Background(), testPayload("malformed"))
	var ve *transport.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestSubmit_MissingReportID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, nil)
	_, err := c.Submit(context.Background(), testPayload("no id"))
	var ve *transport.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "missing report id")
}

func TestSubmit_ArtifactsWithoutPresignedURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method, "no upload must be attempted")
		_, _ = w.Write([]byte(createdResponse("rep-1")))
	}))
	defer srv.Close()

	uploader := upload.NewOrchestrator(resty.New(), srv.URL, testCreds(), nil)
	c := newCoordinatorFor(srv.URL, func(o *Options) { o.Uploader = uploader })

	p := testPayload("with screenshot")
	p.Screenshot = []byte{0x89, 0x50, 0x4e, 0x47}
	_, err := c.Submit(context.Background(), p)
	var ve *transport.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "presigned URLs not provided for report rep-1")
}

func TestSubmit_NetworkFailureQueuesSanitized(t *testing.T) {
	store := offline.NewMemoryStore(10)
	queue := offline.NewQueue(store, resty.New().SetTimeout(time.Second), nil, 10)
	defer queue.Close()

	// 本地端口未监听：连接被拒视为网络错误而非 HTTP 错误
	c := newCoordinatorFor("http://127.0.0.1:1/reports", func(o *Options) { o.Queue = queue })

	_, err := c.Submit(context.Background(), testPayload("offline"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queued for later replay")
	var te *transport.TransportError
	require.ErrorAs(t, err, &te)

	entries, qerr := store.Entries(context.Background())
	require.NoError(t, qerr)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "http://127.0.0.1:1/reports", e.Endpoint)
	assert.Equal(t, "application/json", e.Headers["Content-Type"])
	for k := range e.Headers {
		assert.NotEqual(t, "x-api-key", k, "credentials must never be persisted")
		assert.NotEqual(t, "X-API-Key", k, "credentials must never be persisted")
	}
	var cr report.CreateRequest
	require.NoError(t, json.Unmarshal(e.Body, &cr))
	assert.Equal(t, "offline", cr.Title)
}

func TestSubmit_FullThreePhaseUpload(t *testing.T) {
	var mu sync.Mutex
	var putPaths, confirmPaths []string

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPut:
			putPaths = append(putPaths, r.URL.Path)
			assert.Empty(t, r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/v1/reports/rep-9/confirm-upload":
			confirmPaths = append(confirmPaths, r.URL.Path)
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			resp := report.CreateResponse{
				Success: true,
				Data: &report.Created{
					ID: "rep-9",
					PresignedURLs: map[report.FileType]report.UploadSlot{
						report.FileTypeScreenshot: {
							UploadURL:  srvURL + "/storage/shot",
							StorageKey: "keys/shot",
						},
					},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	uploader := upload.NewOrchestrator(resty.New().SetTimeout(5*time.Second), srv.URL, testCreds(), nil)
	c := newCoordinatorFor(srv.URL, func(o *Options) { o.Uploader = uploader })

	p := testPayload("three phase")
	p.Screenshot = []byte{0x89, 0x50, 0x4e, 0x47}
	res, err := c.Submit(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "rep-9", res.ReportID)
	require.Len(t, res.Uploads, 1)
	assert.True(t, res.Uploads[0].Success)
	assert.Equal(t, "keys/shot", res.Uploads[0].StorageKey)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/storage/shot"}, putPaths)
	assert.Equal(t, []string{"/api/v1/reports/rep-9/confirm-upload"}, confirmPaths)
}

func TestSubmit_RedactorApplied(t *testing.T) {
	var got report.CreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(createdResponse("rep-1")))
	}))
	defer srv.Close()

	c := newCoordinatorFor(srv.URL, func(o *Options) {
		o.Redactor = redactorFunc(func(d report.Data) (report.Data, error) {
			for i := range d.Console {
				d.Console[i].Message = "[redacted]"
			}
			return d, nil
		})
	})

	_, err := c.Submit(context.Background(), testPayload("redact me"))
	require.NoError(t, err)
	require.Len(t, got.Report.Console, 1)
	assert.Equal(t, "[redacted]", got.Report.Console[0].Message)
}

type redactorFunc func(report.Data) (report.Data, error)

func (f redactorFunc) Redact(d report.Data) (report.Data, error) { return f(d) }
