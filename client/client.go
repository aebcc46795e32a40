package client

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "io/ioutil"
    "net/http"
    "strings"
    "time"

    . "github.com/cljohnso/terracotta-platform/model"
    "github.com/cljohnso/terracotta-platform/nomad"
)

const DefaultClientTimeout = time.Second * 10

var EClientTimeout = errors.New("Client request timed out")

type ErrorStatusCode struct {
    StatusCode int
    Message string
}

func (errorStatus *ErrorStatusCode) Error() string {
    return errorStatus.Message
}

type ClientConfig struct {
    Timeout time.Duration
}

// Client talks to a remote node's HTTP surface.
type Client struct {
    httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
    if config.Timeout == 0 {
        config.Timeout = DefaultClientTimeout
    }

    return &Client{
        httpClient: &http.Client{
            Timeout: config.Timeout,
        },
    }
}

func (client *Client) sendRequest(ctx context.Context, httpVerb string, endpointURL string, body []byte) ([]byte, error) {
    request, err := http.NewRequest(httpVerb, endpointURL, bytes.NewReader(body))

    if err != nil {
        return nil, err
    }

    request = request.WithContext(ctx)

    resp, err := client.httpClient.Do(request)

    if err != nil {
        if strings.Contains(err.Error(), "Timeout") {
            return nil, EClientTimeout
        }

        return nil, err
    }

    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        errorMessage, err := ioutil.ReadAll(resp.Body)

        if err != nil {
            return nil, err
        }

        return nil, &ErrorStatusCode{ Message: string(errorMessage), StatusCode: resp.StatusCode }
    }

    responseBody, err := ioutil.ReadAll(resp.Body)

    if err != nil {
        return nil, err
    }

    return responseBody, nil
}

// RuntimeTopology fetches the configuration currently in effect at the node.
//
// Return Values:
//   EClientTimeout: The request to the node timed out
func (client *Client) RuntimeTopology(ctx context.Context, member Address) (*NodeContext, error) {
    body, err := client.sendRequest(ctx, "GET", member.ToHTTPURL("/topology/runtime"), nil)

    if err != nil {
        return nil, err
    }

    var nodeContext NodeContext

    if err := json.Unmarshal(body, &nodeContext); err != nil {
        return nil, err
    }

    return &nodeContext, nil
}

// UpcomingTopology fetches the configuration that will be in effect after
// any pending restart.
func (client *Client) UpcomingTopology(ctx context.Context, member Address) (*NodeContext, error) {
    body, err := client.sendRequest(ctx, "GET", member.ToHTTPURL("/topology/upcoming"), nil)

    if err != nil {
        return nil, err
    }

    var nodeContext NodeContext

    if err := json.Unmarshal(body, &nodeContext); err != nil {
        return nil, err
    }

    return &nodeContext, nil
}

func (client *Client) IsRestartRequired(ctx context.Context, member Address) (bool, error) {
    body, err := client.sendRequest(ctx, "GET", member.ToHTTPURL("/topology/restart-required"), nil)

    if err != nil {
        return false, err
    }

    var response struct {
        RestartRequired bool `json:"restartRequired"`
    }

    if err := json.Unmarshal(body, &response); err != nil {
        return false, err
    }

    return response.RestartRequired, nil
}

// PrepareActivation asks a node in diagnostic mode to validate the proposed
// cluster, install the license and activate itself.
func (client *Client) PrepareActivation(ctx context.Context, member Address, cluster *Cluster, licenseContent string) error {
    request := struct {
        Cluster *Cluster `json:"cluster"`
        License string `json:"license,omitempty"`
    }{ Cluster: cluster, License: licenseContent }

    encoded, _ := json.Marshal(request)
    _, err := client.sendRequest(ctx, "POST", member.ToHTTPURL("/topology/activate"), encoded)

    return err
}

// Restart asks the node to invoke its restart hook after the given delay.
func (client *Client) Restart(ctx context.Context, member Address, delay time.Duration) error {
    request := struct {
        DelaySeconds uint64 `json:"delaySeconds"`
    }{ DelaySeconds: uint64(delay / time.Second) }

    encoded, _ := json.Marshal(request)
    _, err := client.sendRequest(ctx, "POST", member.ToHTTPURL("/topology/restart"), encoded)

    return err
}

// HTTPConnector drives one remote nomad server through the node's /nomad
// endpoints. It implements nomad.Connector.
type HTTPConnector struct {
    client *Client
    member Address
}

func NewHTTPConnector(client *Client, member Address) *HTTPConnector {
    return &HTTPConnector{ client: client, member: member }
}

func (connector *HTTPConnector) post(ctx context.Context, relativePath string, message interface{}) (*nomad.AcceptRejectResponse, error) {
    encoded, err := json.Marshal(message)

    if err != nil {
        return nil, err
    }

    body, err := connector.client.sendRequest(ctx, "POST", connector.member.ToHTTPURL(relativePath), encoded)

    if err != nil {
        return nil, err
    }

    var response nomad.AcceptRejectResponse

    if err := json.Unmarshal(body, &response); err != nil {
        return nil, err
    }

    return &response, nil
}

func (connector *HTTPConnector) Discover(ctx context.Context) (*nomad.DiscoverResponse, error) {
    body, err := connector.client.sendRequest(ctx, "POST", connector.member.ToHTTPURL("/nomad/discover"), []byte("{}"))

    if err != nil {
        return nil, err
    }

    var response nomad.DiscoverResponse

    if err := json.Unmarshal(body, &response); err != nil {
        return nil, err
    }

    return &response, nil
}

func (connector *HTTPConnector) Prepare(ctx context.Context, message nomad.PrepareMessage) (*nomad.AcceptRejectResponse, error) {
    return connector.post(ctx, "/nomad/prepare", message)
}

func (connector *HTTPConnector) Commit(ctx context.Context, message nomad.CommitMessage) (*nomad.AcceptRejectResponse, error) {
    return connector.post(ctx, "/nomad/commit", message)
}

func (connector *HTTPConnector) Rollback(ctx context.Context, message nomad.RollbackMessage) (*nomad.AcceptRejectResponse, error) {
    return connector.post(ctx, "/nomad/rollback", message)
}

func (connector *HTTPConnector) Takeover(ctx context.Context, message nomad.TakeoverMessage) (*nomad.AcceptRejectResponse, error) {
    return connector.post(ctx, "/nomad/takeover", message)
}
