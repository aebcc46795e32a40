package model

type SecurityConfig struct {
    SSLTLS bool `json:"sslTls"`
    Authc string `json:"authc,omitempty"`
    Whitelist bool `json:"whitelist"`
    SecurityDir string `json:"securityDir,omitempty"`
}

// AnyEnabled indicates whether any security feature is turned on. Every node
// must declare a security directory exactly when this is true.
func (securityConfig SecurityConfig) AnyEnabled() bool {
    return securityConfig.SSLTLS || securityConfig.Authc != "" || securityConfig.Whitelist
}

type Node struct {
    Name string `json:"name"`
    UID string `json:"uid"`
    StripeUID string `json:"stripeUID,omitempty"`
    Hostname string `json:"hostname"`
    PublicAddress Address `json:"publicAddress"`
    GroupAddress Address `json:"groupAddress"`
    BindAddress string `json:"bindAddress,omitempty"`
    DataDirs map[string]string `json:"dataDirs,omitempty"`
    LogDir string `json:"logDir,omitempty"`
    BackupDir string `json:"backupDir,omitempty"`
    MetadataDir string `json:"metadataDir,omitempty"`
    AuditLogDir string `json:"auditLogDir,omitempty"`
    Security SecurityConfig `json:"security"`
    TCProperties map[string]string `json:"tcProperties,omitempty"`
    Loggers map[string]string `json:"loggers,omitempty"`
}

func NewNode(name string, hostname string, publicAddress Address, groupAddress Address) *Node {
    return &Node{
        Name: name,
        UID: NewUID(),
        Hostname: hostname,
        PublicAddress: publicAddress,
        GroupAddress: groupAddress,
        DataDirs: make(map[string]string),
        TCProperties: make(map[string]string),
        Loggers: make(map[string]string),
    }
}

func (node *Node) Clone() *Node {
    clone := *node
    clone.DataDirs = cloneStringMap(node.DataDirs)
    clone.TCProperties = cloneStringMap(node.TCProperties)
    clone.Loggers = cloneStringMap(node.Loggers)

    return &clone
}

// CloneForAttachment prepares this node to join the stripe that reference
// belongs to. The cluster-wide posture (data directory names, security
// settings) is inherited from the reference node so the attached node does
// not break the stripe invariants.
func (node *Node) CloneForAttachment(reference *Node) *Node {
    clone := node.Clone()
    clone.Security = reference.Security
    clone.DataDirs = make(map[string]string)

    for name, path := range reference.DataDirs {
        if ownPath, ok := node.DataDirs[name]; ok {
            clone.DataDirs[name] = ownPath
        } else {
            clone.DataDirs[name] = path
        }
    }

    return clone
}

func cloneStringMap(m map[string]string) map[string]string {
    if m == nil {
        return nil
    }

    clone := make(map[string]string, len(m))

    for k, v := range m {
        clone[k] = v
    }

    return clone
}
