package reporters

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/buildhook-io/buildhook/pkg/model"
	"github.com/buildhook-io/buildhook/pkg/streaming"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type recordedRequest struct {
	Path  string
	Query url.Values
	Body  map[string]interface{}
}

type recordingServer struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	response string
	requests []recordedRequest
}

func newRecordingServer(status int, response string) *recordingServer {
	rs := &recordingServer{status: status, response: response}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		var parsed map[string]interface{}
		json.Unmarshal(body, &parsed)

		rs.mu.Lock()
		rs.requests = append(rs.requests, recordedRequest{
			Path:  r.URL.Path,
			Query: r.URL.Query(),
			Body:  parsed,
		})
		rs.mu.Unlock()

		w.WriteHeader(rs.status)
		w.Write([]byte(rs.response))
	}))
	return rs
}

func (rs *recordingServer) Requests() []recordedRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]recordedRequest{}, rs.requests...)
}

func testReporter(t *testing.T, endpoint string, settings map[string]interface{}) *HipchatReporter {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	if _, ok := settings["auth_token"]; !ok {
		settings["auth_token"] = "abc"
	}
	settings["endpoint"] = endpoint

	reporter, err := NewHipchatReporter(settings)
	assert.Nil(t, err)
	return reporter
}

func newBuild() *model.Build {
	return &model.Build{
		Builder: "Builder0",
		Number:  0,
		URL:     "http://localhost:8080/#builders/79/builds/0",
	}
}

func finishedBuild(results int) *model.Build {
	build := newBuild()
	build.Complete = true
	build.Results = results
	return build
}

func newEvent() streaming.EventKey {
	return streaming.EventKey{Collection: streaming.CollectionBuilds, ID: 20, Kind: streaming.KindNew}
}

func finishedEvent() streaming.EventKey {
	return streaming.EventKey{Collection: streaming.CollectionBuilds, ID: 20, Kind: streaming.KindFinished}
}

func TestAuthTokenTypeCheck(t *testing.T) {
	_, err := NewHipchatReporter(map[string]interface{}{"auth_token": 2})
	assert.EqualError(t, err, "auth_token must be a string")
}

func TestEndpointTypeCheck(t *testing.T) {
	_, err := NewHipchatReporter(map[string]interface{}{"auth_token": "2", "endpoint": 2})
	assert.EqualError(t, err, "endpoint must be a string")
}

func TestBuilderRoomMapTypeCheck(t *testing.T) {
	_, err := NewHipchatReporter(map[string]interface{}{"auth_token": "abc", "builder_room_map": 2})
	assert.EqualError(t, err, "builder_room_map must be a dict")
}

func TestBuilderUserMapTypeCheck(t *testing.T) {
	_, err := NewHipchatReporter(map[string]interface{}{"auth_token": "abc", "builder_user_map": 2})
	assert.EqualError(t, err, "builder_user_map must be a dict")
}

func TestDefaultEndpoint(t *testing.T) {
	reporter, err := NewHipchatReporter(map[string]interface{}{"auth_token": "abc"})
	assert.Nil(t, err)
	assert.Equal(t, HostedBaseURL, reporter.endpoint)
}

func TestBuildStarted(t *testing.T) {
	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_user_map": map[string]interface{}{"Builder0": "123"},
	})

	err := reporter.GotEvent(newEvent(), newBuild())
	assert.Nil(t, err)

	requests := server.Requests()
	assert.Equal(t, 1, len(requests))
	assert.Equal(t, "/v2/user/123/message", requests[0].Path)
	assert.Equal(t, "abc", requests[0].Query.Get("auth_token"))
	assert.Equal(t,
		"Buildbot started build Builder0 here: http://localhost:8080/#builders/79/builds/0",
		requests[0].Body["message"])
}

func TestBuildFinished(t *testing.T) {
	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_room_map": map[string]interface{}{"Builder0": "123"},
	})

	err := reporter.GotEvent(finishedEvent(), finishedBuild(model.Success))
	assert.Nil(t, err)

	requests := server.Requests()
	assert.Equal(t, 1, len(requests))
	assert.Equal(t, "/v2/room/123/notification", requests[0].Path)
	assert.Equal(t,
		"Buildbot finished build Builder0 with result success here: http://localhost:8080/#builders/79/builds/0",
		requests[0].Body["message"])
}

func TestInterpolatedAuthToken(t *testing.T) {
	t.Setenv("HIPCHAT_AUTH_TOKEN", "auth")

	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"auth_token":       "${HIPCHAT_AUTH_TOKEN}",
		"builder_user_map": map[string]interface{}{"Builder0": "123"},
	})

	err := reporter.GotEvent(newEvent(), newBuild())
	assert.Nil(t, err)

	requests := server.Requests()
	assert.Equal(t, 1, len(requests))
	assert.Equal(t, "auth", requests[0].Query.Get("auth_token"))
}

func TestInjectExtraParams(t *testing.T) {
	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_room_map": map[string]interface{}{"Builder0": "123"},
	})
	reporter.ExtraParams = func(build *model.Build) map[string]interface{} {
		return map[string]interface{}{"format": "html"}
	}

	err := reporter.GotEvent(finishedEvent(), finishedBuild(model.Success))
	assert.Nil(t, err)

	requests := server.Requests()
	assert.Equal(t, 1, len(requests))
	assert.Equal(t, "html", requests[0].Body["format"])
	assert.Equal(t,
		"Buildbot finished build Builder0 with result success here: http://localhost:8080/#builders/79/builds/0",
		requests[0].Body["message"])
}

func TestNoMessageSentWithoutMapping(t *testing.T) {
	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, nil)

	err := reporter.GotEvent(newEvent(), newBuild())
	assert.Nil(t, err)
	assert.Equal(t, 0, len(server.Requests()))
}

func TestBothDestinations(t *testing.T) {
	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_room_map": map[string]interface{}{"Builder0": "123"},
		"builder_user_map": map[string]interface{}{"Builder0": "456"},
	})

	err := reporter.GotEvent(finishedEvent(), finishedBuild(model.Success))
	assert.Nil(t, err)

	requests := server.Requests()
	assert.Equal(t, 2, len(requests))

	paths := []string{requests[0].Path, requests[1].Path}
	assert.Contains(t, paths, "/v2/user/456/message")
	assert.Contains(t, paths, "/v2/room/123/notification")
	assert.Equal(t, requests[0].Body, requests[1].Body)
}

func TestNumericRoomIDsAreCoerced(t *testing.T) {
	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_room_map": map[interface{}]interface{}{"Builder0": 123},
	})

	err := reporter.GotEvent(finishedEvent(), finishedBuild(model.Success))
	assert.Nil(t, err)

	requests := server.Requests()
	assert.Equal(t, 1, len(requests))
	assert.Equal(t, "/v2/room/123/notification", requests[0].Path)
}

func TestUploadErrorIsLoggedNotRaised(t *testing.T) {
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	server := newRecordingServer(404,
		`{"error_description": "This user is unknown to us", "error": "invalid_user"}`)
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_user_map": map[string]interface{}{"Builder0": "123"},
	})

	err := reporter.GotEvent(newEvent(), newBuild())
	assert.Nil(t, err)

	logged := false
	for _, entry := range hook.AllEntries() {
		if entry.Message == "404: unable to upload status" {
			logged = true
		}
	}
	if !logged {
		t.Errorf("a rejected upload must be logged with its status code")
	}
}

type countingSender struct {
	reporter *HipchatReporter
	calls    int
}

func (s *countingSender) Send(build *model.Build) error {
	s.calls++
	return s.reporter.Send(build)
}

func TestLegacySendOverride(t *testing.T) {
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	server := newRecordingServer(200, "{}")
	defer server.Close()

	reporter := testReporter(t, server.URL, map[string]interface{}{
		"builder_user_map": map[string]interface{}{"Builder0": "123"},
	})
	sender := &countingSender{reporter: reporter}
	reporter.Legacy = sender

	err := reporter.GotEvent(newEvent(), newBuild())
	assert.Nil(t, err)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel &&
			entry.Message == "send() in reporters has been deprecated. Use sendMessage()" {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
	assert.Equal(t, 1, sender.calls)

	requests := server.Requests()
	assert.Equal(t, 1, len(requests))
	assert.Equal(t, "/v2/user/123/message", requests[0].Path)
	assert.Equal(t,
		"Buildbot started build Builder0 here: http://localhost:8080/#builders/79/builds/0",
		requests[0].Body["message"])
}
