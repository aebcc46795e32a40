package license_test

import (
    dberr "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/license"
    . "github.com/cljohnso/terracotta-platform/model"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var licenseXML string = `
<license>
    <licensee>Test Corp</licensee>
    <capabilities>
        <max-nodes>2</max-nodes>
        <max-offheap-mb>1024</max-offheap-mb>
    </capabilities>
</license>
`

func licensedCluster(nodes int, offheapBytes uint64) *Cluster {
    stripe := &Stripe{ Name: "stripe-1", UID: NewUID() }

    for i := 0; i < nodes; i += 1 {
        node := NewNode("node", "host", Address{ Host: "host", Port: 9410 + i }, Address{ Host: "host", Port: 9430 + i })
        node.StripeUID = stripe.UID
        stripe.Nodes = append(stripe.Nodes, node)
    }

    cluster := NewCluster("test-cluster", stripe)
    cluster.OffheapResources["main"] = offheapBytes

    return cluster
}

var _ = Describe("License", func() {
    It("should parse the capability limits", func() {
        license, err := ParseLicense([]byte(licenseXML))

        Expect(err).Should(BeNil())
        Expect(license.Licensee).Should(Equal("Test Corp"))
        Expect(license.MaxNodes).Should(Equal(2))
        Expect(license.MaxOffheapMB).Should(Equal(uint64(1024)))
    })

    It("should reject malformed content", func() {
        _, err := ParseLicense([]byte("not xml at all <"))

        Expect(err).ShouldNot(BeNil())
    })

    Describe("#Validate", func() {
        It("should accept a cluster within the licensed capacity", func() {
            license, _ := ParseLicense([]byte(licenseXML))

            Expect(license.Validate(licensedCluster(2, 512 * 1024 * 1024))).Should(BeNil())
        })

        It("should reject a cluster with too many nodes", func() {
            license, _ := ParseLicense([]byte(licenseXML))

            Expect(license.Validate(licensedCluster(3, 512 * 1024 * 1024))).Should(Equal(dberr.ELicenseViolation))
        })

        It("should reject a cluster exceeding the offheap allowance", func() {
            license, _ := ParseLicense([]byte(licenseXML))

            Expect(license.Validate(licensedCluster(2, 2048 * 1024 * 1024))).Should(Equal(dberr.ELicenseViolation))
        })
    })
})
