package reporters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/buildhook-io/buildhook/pkg/model"
	"github.com/buildhook-io/buildhook/pkg/streaming"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HostedBaseURL is the endpoint of the hosted HipChat service, used when the
// settings don't name one.
const HostedBaseURL = "https://api.hipchat.com"

const (
	destinationUser = "user"
	destinationRoom = "room"
)

// ConfigError is a fatal, construction-time settings violation.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

// Sender is the legacy per-build entry point. Installing one routes every
// event through it instead of the built-in path.
//
// Deprecated: implement the extra-params hook and let the reporter send.
type Sender interface {
	Send(build *model.Build) error
}

// HipchatReporter posts build status lines to the HipChat v2 REST API, one
// request per mapped destination.
type HipchatReporter struct {
	authToken string
	endpoint  string
	roomMap   map[string]string
	userMap   map[string]string

	// ExtraParams returns additional payload fields, e.g. {"format": "html"}.
	ExtraParams func(build *model.Build) map[string]interface{}
	// Legacy, when set, replaces the built-in send path. Every event logs a
	// deprecation warning before it is invoked.
	Legacy Sender

	client *http.Client
}

// NewHipchatReporter validates the loosely typed settings of a reporter
// block and builds the reporter. Settings shape violations are fatal and no
// request is ever issued for a reporter that failed validation.
func NewHipchatReporter(settings map[string]interface{}) (*HipchatReporter, error) {
	authToken, ok := settings["auth_token"].(string)
	if !ok {
		return nil, ConfigError("auth_token must be a string")
	}

	endpoint := HostedBaseURL
	if v, exists := settings["endpoint"]; exists {
		endpoint, ok = v.(string)
		if !ok {
			return nil, ConfigError("endpoint must be a string")
		}
	}

	roomMap, err := stringMap(settings, "builder_room_map")
	if err != nil {
		return nil, err
	}
	userMap, err := stringMap(settings, "builder_user_map")
	if err != nil {
		return nil, err
	}

	return &HipchatReporter{
		authToken: authToken,
		endpoint:  endpoint,
		roomMap:   roomMap,
		userMap:   userMap,
		client:    &http.Client{},
	}, nil
}

// stringMap coerces a settings entry to a string to string mapping. YAML
// hands over map[interface{}]interface{} and room ids are commonly written as
// bare numbers, so keys and values go through fmt.
func stringMap(settings map[string]interface{}, key string) (map[string]string, error) {
	v, exists := settings[key]
	if !exists || v == nil {
		return map[string]string{}, nil
	}

	coerced := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		coerced = m
	case map[string]interface{}:
		for k, val := range m {
			coerced[k] = fmt.Sprintf("%v", val)
		}
	case map[interface{}]interface{}:
		for k, val := range m {
			coerced[fmt.Sprintf("%v", k)] = fmt.Sprintf("%v", val)
		}
	default:
		return nil, ConfigError(key + " must be a dict")
	}
	return coerced, nil
}

func (r *HipchatReporter) GotEvent(key streaming.EventKey, build *model.Build) error {
	if r.Legacy != nil {
		logrus.Warn("send() in reporters has been deprecated. Use sendMessage()")
		return r.Legacy.Send(build)
	}
	return r.Send(build)
}

// buildDetails assembles the outbound payload, destination ids included.
// Mirrors the shape the legacy API exposed: the destination ids travel inside
// the payload and are popped before posting.
func (r *HipchatReporter) buildDetails(build *model.Build) map[string]interface{} {
	postData := map[string]interface{}{
		"message": buildMessage(build),
	}

	if id, ok := r.userMap[build.Builder]; ok {
		postData["id_or_email"] = id
	}
	if id, ok := r.roomMap[build.Builder]; ok {
		postData["room_id_or_name"] = id
	}

	if r.ExtraParams != nil {
		for k, v := range r.ExtraParams(build) {
			postData[k] = v
		}
	}
	return postData
}

// Send resolves the build's destinations and posts one message per hit. A
// builder absent from both maps is a no-op. Rejected uploads are logged and
// swallowed so one destination's failure never blocks the other's send.
func (r *HipchatReporter) Send(build *model.Build) error {
	postData := r.buildDetails(build)
	userID := popString(postData, "id_or_email")
	roomID := popString(postData, "room_id_or_name")

	if userID == "" && roomID == "" {
		logrus.Debugf("builder %s is not mapped to a room or user, skipping", build.Builder)
		return nil
	}

	token := interpolate(r.authToken)

	// both sends are attempted even if the first one errors out
	var firstErr error
	if userID != "" {
		err := r.post("/v2/user/"+userID+"/message", token, destinationUser, postData)
		if err != nil {
			firstErr = err
		}
	}
	if roomID != "" {
		err := r.post("/v2/room/"+roomID+"/notification", token, destinationRoom, postData)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *HipchatReporter) post(path string, token string, destination string, payload map[string]interface{}) error {
	b := new(bytes.Buffer)
	err := json.NewEncoder(b).Encode(payload)
	if err != nil {
		return errors.Wrap(err, "cannot encode hipchat message")
	}

	u := r.endpoint + path + "?auth_token=" + url.QueryEscape(token)
	req, err := http.NewRequest("POST", u, b)
	if err != nil {
		return errors.Wrap(err, "cannot build hipchat request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	res, err := r.client.Do(req)
	if err != nil {
		notificationsFailed.WithLabelValues(destination).Inc()
		return errors.Wrap(err, "could not post to hipchat")
	}
	defer res.Body.Close()
	ioutil.ReadAll(res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		notificationsFailed.WithLabelValues(destination).Inc()
		logrus.Errorf("%d: unable to upload status", res.StatusCode)
		return nil
	}

	notificationsSent.WithLabelValues(destination).Inc()
	return nil
}

func popString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	return fmt.Sprintf("%v", v)
}
