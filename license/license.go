package license

import (
    "encoding/xml"
    "errors"
    "fmt"

    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/model"
)

const LicenseFileName = "license.xml"

// License grants capacity to a cluster. The file format is opaque to the
// rest of the system; only the capability check below is exposed.
type License struct {
    XMLName xml.Name `xml:"license"`
    Licensee string `xml:"licensee"`
    MaxNodes int `xml:"capabilities>max-nodes"`
    MaxOffheapMB uint64 `xml:"capabilities>max-offheap-mb"`
}

func ParseLicense(content []byte) (*License, error) {
    var license License

    if err := xml.Unmarshal(content, &license); err != nil {
        return nil, errors.New(fmt.Sprintf("The license could not be parsed: %v", err))
    }

    return &license, nil
}

// Validate checks the cluster against the licensed capacity. A zero limit
// means unlimited.
func (license *License) Validate(cluster *Cluster) error {
    if license.MaxNodes > 0 && cluster.NodeCount() > license.MaxNodes {
        return ELicenseViolation
    }

    if license.MaxOffheapMB > 0 {
        var total uint64

        for _, size := range cluster.OffheapResources {
            total += size
        }

        if total > license.MaxOffheapMB * 1024 * 1024 {
            return ELicenseViolation
        }
    }

    return nil
}
