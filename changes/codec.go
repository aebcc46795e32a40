package changes

import (
    "encoding/json"
    "errors"
    "fmt"

    . "github.com/cljohnso/terracotta-platform/model"
)

const (
    FormatV1 = "v1"
    FormatV2 = "v2"
)

var ENoSuchChangeType = errors.New("The change type is not supported")
var ECouldNotParseChange = errors.New("The change document was not properly formatted. Unable to parse it.")
var EFormatUpgradeRequired = errors.New("The change document uses the V1 format. The configuration must be format-upgraded before new changes are accepted")

type changeEnvelope struct {
    Version string `json:"version"`
    ChangeType string `json:"type"`
    Body json.RawMessage `json:"body"`
}

type activationBody struct {
    Cluster *Cluster `json:"cluster"`
    LicenseContent string `json:"license,omitempty"`
}

type settingBody struct {
    Op string `json:"op"`
    SettingName string `json:"setting"`
    Applicability Applicability `json:"applicability"`
    Key string `json:"key,omitempty"`
    Value string `json:"value,omitempty"`
}

type multiSettingBody struct {
    Changes []settingBody `json:"changes"`
}

type formatUpgradeBody struct {
    FromVersion int `json:"from"`
    ToVersion int `json:"to"`
}

type nodeAdditionBody struct {
    StripeUID string `json:"stripeUID"`
    Node *Node `json:"node"`
}

type nodeRemovalBody struct {
    Address Address `json:"address"`
}

// The V1 persisted form addressed stripes by 1-based index and nodes by name.
type settingBodyV1 struct {
    Op string `json:"op"`
    SettingName string `json:"setting"`
    Applicability applicabilityV1 `json:"applicability"`
    Key string `json:"key,omitempty"`
    Value string `json:"value,omitempty"`
}

type applicabilityV1 struct {
    Scope string `json:"scope"`
    StripeID int `json:"stripeId,omitempty"`
    NodeName string `json:"nodeName,omitempty"`
}

// EncodeChange always writes the V2 form.
func EncodeChange(change NomadChange) ([]byte, error) {
    var body interface{}

    switch c := change.(type) {
    case ClusterActivationChange:
        body = activationBody{ Cluster: c.Cluster, LicenseContent: c.LicenseContent }
    case SettingChange:
        body = encodeSettingBody(c)
    case MultiSettingChange:
        bodies := make([]settingBody, 0, len(c.Changes))

        for _, child := range c.Changes {
            bodies = append(bodies, encodeSettingBody(child))
        }

        body = multiSettingBody{ Changes: bodies }
    case FormatUpgradeChange:
        body = formatUpgradeBody{ FromVersion: c.FromVersion, ToVersion: c.ToVersion }
    case NodeAdditionChange:
        body = nodeAdditionBody{ StripeUID: c.StripeUID, Node: c.Node }
    case NodeRemovalChange:
        body = nodeRemovalBody{ Address: c.Address }
    default:
        return nil, ENoSuchChangeType
    }

    encodedBody, err := json.Marshal(body)

    if err != nil {
        return nil, err
    }

    return json.Marshal(changeEnvelope{
        Version: FormatV2,
        ChangeType: change.Type(),
        Body: encodedBody,
    })
}

func encodeSettingBody(change SettingChange) settingBody {
    return settingBody{
        Op: change.Op,
        SettingName: change.Configuration.SettingName,
        Applicability: change.Configuration.Applicability,
        Key: change.Configuration.Key,
        Value: change.Configuration.Value,
    }
}

// DecodeChange reads both the V2 and the legacy V1 forms. V1 stripe indexes
// and node names are resolved to UIDs against the supplied cluster, so
// decoding a V1 setting change requires a committed topology.
func DecodeChange(data []byte, cluster *Cluster) (NomadChange, error) {
    var envelope changeEnvelope

    if err := json.Unmarshal(data, &envelope); err != nil {
        return nil, ECouldNotParseChange
    }

    switch envelope.Version {
    case FormatV2:
        return decodeChangeV2(envelope)
    case FormatV1:
        return decodeChangeV1(envelope, cluster)
    default:
        return nil, errors.New(fmt.Sprintf("%s is not a supported change format version", envelope.Version))
    }
}

func decodeChangeV2(envelope changeEnvelope) (NomadChange, error) {
    switch envelope.ChangeType {
    case TypeClusterActivation:
        var body activationBody

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        return ClusterActivationChange{ Cluster: body.Cluster, LicenseContent: body.LicenseContent }, nil
    case TypeSetting:
        var body settingBody

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        return decodeSettingBody(body), nil
    case TypeMultiSetting:
        var body multiSettingBody

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        children := make([]SettingChange, 0, len(body.Changes))

        for _, child := range body.Changes {
            children = append(children, decodeSettingBody(child))
        }

        return MultiSettingChange{ Changes: children }, nil
    case TypeFormatUpgrade:
        var body formatUpgradeBody

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        return FormatUpgradeChange{ FromVersion: body.FromVersion, ToVersion: body.ToVersion }, nil
    case TypeNodeAddition:
        var body nodeAdditionBody

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        return NodeAdditionChange{ StripeUID: body.StripeUID, Node: body.Node }, nil
    case TypeNodeRemoval:
        var body nodeRemovalBody

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        return NodeRemovalChange{ Address: body.Address }, nil
    default:
        return nil, ENoSuchChangeType
    }
}

func decodeSettingBody(body settingBody) SettingChange {
    return SettingChange{
        Op: body.Op,
        Configuration: Configuration{
            SettingName: body.SettingName,
            Applicability: body.Applicability,
            Key: body.Key,
            Value: body.Value,
        },
    }
}

func decodeChangeV1(envelope changeEnvelope, cluster *Cluster) (NomadChange, error) {
    switch envelope.ChangeType {
    case TypeSetting:
        var body settingBodyV1

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        change, err := upgradeSettingBodyV1(body, cluster)

        if err != nil {
            return nil, err
        }

        return change, nil
    case TypeMultiSetting:
        var body struct {
            Changes []settingBodyV1 `json:"changes"`
        }

        if err := json.Unmarshal(envelope.Body, &body); err != nil {
            return nil, ECouldNotParseChange
        }

        children := make([]SettingChange, 0, len(body.Changes))

        for _, child := range body.Changes {
            change, err := upgradeSettingBodyV1(child, cluster)

            if err != nil {
                return nil, err
            }

            children = append(children, change)
        }

        return MultiSettingChange{ Changes: children }, nil
    case TypeClusterActivation, TypeFormatUpgrade:
        // these bodies carry no applicability and are identical across formats
        return decodeChangeV2(changeEnvelope{ Version: FormatV2, ChangeType: envelope.ChangeType, Body: envelope.Body })
    default:
        return nil, ENoSuchChangeType
    }
}

func upgradeSettingBodyV1(body settingBodyV1, cluster *Cluster) (SettingChange, error) {
    applicability := ClusterApplicability()

    switch body.Applicability.Scope {
    case ScopeCluster:
    case ScopeStripe, ScopeNode:
        if cluster == nil {
            return SettingChange{ }, EFormatUpgradeRequired
        }

        stripe := cluster.StripeByIndex(body.Applicability.StripeID - 1)

        if stripe == nil {
            return SettingChange{ }, errors.New(fmt.Sprintf("No stripe with index %d exists in the cluster", body.Applicability.StripeID))
        }

        if body.Applicability.Scope == ScopeStripe {
            applicability = StripeApplicability(stripe.UID)

            break
        }

        node := stripe.NodeByName(body.Applicability.NodeName)

        if node == nil {
            return SettingChange{ }, errors.New(fmt.Sprintf("No node named %s exists in stripe %d", body.Applicability.NodeName, body.Applicability.StripeID))
        }

        applicability = NodeApplicability(stripe.UID, node.UID)
    default:
        return SettingChange{ }, errors.New(fmt.Sprintf("%s is not a valid applicability scope", body.Applicability.Scope))
    }

    return SettingChange{
        Op: body.Op,
        Configuration: Configuration{
            SettingName: body.SettingName,
            Applicability: applicability,
            Key: body.Key,
            Value: body.Value,
        },
    }, nil
}
