package cloudmgmt

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/log"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/shiftdirector/shiftdirector/utils"
)

// AuthUsername - username used for Basic Auth with the cloud management API
const AuthUsername = "shiftdirector"

// ErrClientNotInitialized - when the cloud management client hasn't been initialized
var ErrClientNotInitialized = errors.New("cloud management client not initialized")

// Client is the capability surface the core consumes: the device directory,
// the readiness scorer, and the one side-effecting enrollment call.
type Client interface {
	ListEligibleDevices(goals *types.EnrollmentGoals) ([]types.DeviceReadiness, error)
	ScoreDevice(deviceID string) (*types.DeviceReadiness, error)
	Enroll(deviceID string) (*EnrollResponse, error)
}

// CloudClient talks to the cloud management service over HTTP.
type CloudClient struct {
	serverURL string
	apiKey    string
	client    *utils.HTTPClient
}

// cloudClient holds the global client instance
var cloudClient Client

// InitClient initializes the global cloud management client.
func InitClient(serverURL, apiKey string) {
	cloudClient = &CloudClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		client:    utils.NewHTTPClient(60*time.Second, nil),
	}
}

// SetClientForTesting allows injecting a mock client for testing
func SetClientForTesting(client Client) {
	cloudClient = client
}

// GetClient returns the global client instance, or ErrClientNotInitialized
// if InitClient hasn't been called.
func GetClient() (Client, error) {
	if cloudClient == nil {
		return nil, ErrClientNotInitialized
	}
	return cloudClient, nil
}

func (c *CloudClient) buildURL(elems ...string) (string, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return "", errors.Wrap(err, "parse server URL")
	}
	u.Path = path.Join(append([]string{u.Path, "v1"}, elems...)...)
	return u.String(), nil
}

func (c *CloudClient) doRequest(method, endpoint string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, endpoint, bodyReader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.SetBasicAuth(AuthUsername, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("cloudmgmt: %v %v", method, endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "decode response: %s", string(respBody))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("cloud management API returned status %d", resp.StatusCode)
	}

	return nil
}

// ListEligibleDevices queries the directory for enrollment candidates. The
// excluded set and minimum score from the goals are applied server-side;
// readiness derivation happens locally.
func (c *CloudClient) ListEligibleDevices(goals *types.EnrollmentGoals) ([]types.DeviceReadiness, error) {
	filter := EligibleDevicesFilter{}
	if goals != nil {
		filter.MinimumScore = goals.MinimumReadinessScore
		filter.ExcludedIDs = goals.ExcludedDeviceIDs
	}

	endpoint, err := c.buildURL("devices", "eligible")
	if err != nil {
		return nil, err
	}

	var resp DevicesResponse
	if err := c.doRequest("POST", endpoint, filter, &resp); err != nil {
		return nil, errors.Wrap(err, "ListEligibleDevices")
	}
	if resp.Error != "" {
		return nil, errors.Errorf("ListEligibleDevices: %s", resp.Error)
	}

	readiness := make([]types.DeviceReadiness, 0, len(resp.Devices))
	for i := range resp.Devices {
		readiness = append(readiness, DeriveReadiness(resp.Devices[i]))
	}
	return readiness, nil
}

// ScoreDevice re-scores a single device.
func (c *CloudClient) ScoreDevice(deviceID string) (*types.DeviceReadiness, error) {
	endpoint, err := c.buildURL("devices", deviceID, "readiness")
	if err != nil {
		return nil, err
	}

	var resp DeviceResponse
	if err := c.doRequest("GET", endpoint, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "ScoreDevice")
	}
	if resp.Error != "" {
		return nil, errors.Errorf("ScoreDevice %s: %s", deviceID, resp.Error)
	}
	if resp.Device == nil {
		return nil, errors.Errorf("ScoreDevice %s: device not found", deviceID)
	}

	readiness := DeriveReadiness(*resp.Device)
	return &readiness, nil
}

// Enroll registers the device with the cloud management service. This is the
// single side effect the whole core exists to sequence safely.
func (c *CloudClient) Enroll(deviceID string) (*EnrollResponse, error) {
	endpoint, err := c.buildURL("devices", deviceID, "enroll")
	if err != nil {
		return nil, err
	}

	var resp EnrollResponse
	if err := c.doRequest("POST", endpoint, struct{}{}, &resp); err != nil {
		return nil, errors.Wrap(err, "Enroll")
	}
	if resp.Error != "" {
		return &resp, errors.Errorf("Enroll %s: %s", deviceID, resp.Error)
	}

	return &resp, nil
}
