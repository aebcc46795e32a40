package model_test

import (
    . "github.com/cljohnso/terracotta-platform/model"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

func testNode(name string, port int) *Node {
    node := NewNode(name, "host1", Address{ Host: "host1", Port: port }, Address{ Host: "host1", Port: port + 20 })
    node.DataDirs["main"] = "/data/" + name

    return node
}

func testCluster() *Cluster {
    node1 := testNode("node-1", 9410)
    node2 := testNode("node-2", 9510)
    stripe := NewStripe("stripe-1", node1, node2)
    cluster := NewCluster("test-cluster", stripe)
    cluster.OffheapResources["main"] = 512 * 1024 * 1024

    return cluster
}

var _ = Describe("Validator", func() {
    var validator *ClusterValidator
    var cluster *Cluster

    BeforeEach(func() {
        validator = &ClusterValidator{ }
        cluster = testCluster()
    })

    It("should accept a well formed cluster", func() {
        Expect(validator.Validate(cluster)).Should(BeNil())
    })

    It("should reject a cluster with an empty name", func() {
        cluster.Name = "  "

        Expect(validator.Validate(cluster)).ShouldNot(BeNil())
    })

    It("should reject duplicate public addresses", func() {
        cluster.Stripes[0].Nodes[1].PublicAddress = cluster.Stripes[0].Nodes[0].PublicAddress

        Expect(validator.Validate(cluster)).ShouldNot(BeNil())
    })

    It("should reject duplicate node names within a stripe", func() {
        cluster.Stripes[0].Nodes[1].Name = "node-1"

        Expect(validator.Validate(cluster)).ShouldNot(BeNil())
    })

    It("should reject nodes in one stripe with different data directory names", func() {
        cluster.Stripes[0].Nodes[1].DataDirs["extra"] = "/data/extra"

        Expect(validator.Validate(cluster)).ShouldNot(BeNil())
    })

    Describe("failover priority", func() {
        It("should require an odd sum of voters and nodes in consistency mode", func() {
            cluster.FailoverPriority = FailoverPriority{ Mode: FailoverConsistency, Voters: 1 }

            // 2*1 voters + 2 nodes = 4, even
            Expect(validator.Validate(cluster)).ShouldNot(BeNil())

            cluster.FailoverPriority = FailoverPriority{ Mode: FailoverConsistency, Voters: 0 }

            // 0 voters + 2 nodes = 2, still even
            Expect(validator.Validate(cluster)).ShouldNot(BeNil())
        })

        It("should accept consistency mode when the sum is odd", func() {
            cluster.Stripes[0].Nodes = cluster.Stripes[0].Nodes[:1]
            cluster.FailoverPriority = FailoverPriority{ Mode: FailoverConsistency, Voters: 1 }

            // 2*1 voters + 1 node = 3, odd
            Expect(validator.Validate(cluster)).Should(BeNil())
        })
    })

    Describe("security", func() {
        It("should reject inconsistent security settings across nodes", func() {
            cluster.Stripes[0].Nodes[0].Security.SSLTLS = true
            cluster.Stripes[0].Nodes[0].Security.SecurityDir = "/security"

            Expect(validator.Validate(cluster)).ShouldNot(BeNil())
        })

        It("should require a security directory when a security feature is enabled", func() {
            for _, node := range cluster.AllNodes() {
                node.Security.Whitelist = true
            }

            Expect(validator.Validate(cluster)).ShouldNot(BeNil())

            for _, node := range cluster.AllNodes() {
                node.Security.SecurityDir = "/security"
            }

            Expect(validator.Validate(cluster)).Should(BeNil())
        })

        It("should reject a security directory when no security feature is enabled", func() {
            cluster.Stripes[0].Nodes[0].Security.SecurityDir = "/security"

            Expect(validator.Validate(cluster)).ShouldNot(BeNil())
        })

        It("should require ssl-tls for certificate authentication", func() {
            for _, node := range cluster.AllNodes() {
                node.Security.Authc = "certificate"
                node.Security.SecurityDir = "/security"
            }

            Expect(validator.Validate(cluster)).ShouldNot(BeNil())

            for _, node := range cluster.AllNodes() {
                node.Security.SSLTLS = true
            }

            Expect(validator.Validate(cluster)).Should(BeNil())
        })
    })

    It("should reject an offheap resource with size zero", func() {
        cluster.OffheapResources["broken"] = 0

        Expect(validator.Validate(cluster)).ShouldNot(BeNil())
    })

    Describe("timeouts", func() {
        It("should reject a zero reconnect window", func() {
            cluster.ClientReconnectWindowSeconds = 0

            Expect(validator.Validate(cluster)).ShouldNot(BeNil())
        })

        It("should reject a lease duration above the reconnect window", func() {
            cluster.ClientLeaseDurationSeconds = cluster.ClientReconnectWindowSeconds + 1

            Expect(validator.Validate(cluster)).ShouldNot(BeNil())
        })
    })
})
