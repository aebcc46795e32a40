package model_test

import (
    . "github.com/cljohnso/terracotta-platform/model"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Cluster", func() {
    var cluster *Cluster

    BeforeEach(func() {
        cluster = testCluster()
    })

    Describe("#Clone", func() {
        It("should produce a deep copy", func() {
            clone := cluster.Clone()
            clone.Stripes[0].Nodes[0].DataDirs["main"] = "/elsewhere"
            clone.OffheapResources["main"] = 1

            Expect(cluster.Stripes[0].Nodes[0].DataDirs["main"]).Should(Equal("/data/node-1"))
            Expect(cluster.OffheapResources["main"]).Should(Equal(uint64(512 * 1024 * 1024)))
        })
    })

    Describe("#NodeByUID", func() {
        It("should find a node in any stripe", func() {
            stripe, node := cluster.NodeByUID(cluster.Stripes[0].Nodes[1].UID)

            Expect(stripe).Should(Equal(cluster.Stripes[0]))
            Expect(node.Name).Should(Equal("node-2"))
        })

        It("should return nil for an unknown UID", func() {
            _, node := cluster.NodeByUID("no-such-uid")

            Expect(node).Should(BeNil())
        })
    })

    Describe("#ContainsNode", func() {
        It("should match by address first", func() {
            Expect(cluster.ContainsNode("other-stripe", "other-node", Address{ Host: "host1", Port: 9410 })).Should(BeTrue())
        })

        It("should fall back to stripe and node names", func() {
            Expect(cluster.ContainsNode("stripe-1", "node-2", Address{ })).Should(BeTrue())
            Expect(cluster.ContainsNode("stripe-1", "node-3", Address{ })).Should(BeFalse())
        })
    })
})

var _ = Describe("Stripe", func() {
    var cluster *Cluster
    var stripe *Stripe

    BeforeEach(func() {
        cluster = testCluster()
        stripe = cluster.Stripes[0]
    })

    Describe("#AttachNode", func() {
        It("should reject an address already in the stripe", func() {
            duplicate := testNode("node-3", 9410)

            Expect(stripe.AttachNode(duplicate)).ShouldNot(BeNil())
        })

        It("should refuse to attach to an empty stripe", func() {
            empty := &Stripe{ Name: "stripe-2", UID: NewUID() }

            Expect(empty.AttachNode(testNode("node-3", 9610))).Should(Equal(EEmptyStripe))
        })

        It("should copy the reference node's posture onto the attached node", func() {
            for _, node := range stripe.Nodes {
                node.Security.Whitelist = true
                node.Security.SecurityDir = "/security"
            }

            joining := NewNode("node-3", "host1", Address{ Host: "host1", Port: 9610 }, Address{ Host: "host1", Port: 9630 })

            Expect(stripe.AttachNode(joining)).Should(BeNil())

            attached := stripe.NodeByName("node-3")

            Expect(attached.Security.Whitelist).Should(BeTrue())
            Expect(attached.Security.SecurityDir).Should(Equal("/security"))
            Expect(attached.DataDirs).Should(HaveKey("main"))
            Expect(attached.StripeUID).Should(Equal(stripe.UID))
        })
    })

    Describe("#DetachNode", func() {
        It("should remove the node with the given address", func() {
            Expect(stripe.DetachNode(Address{ Host: "host1", Port: 9510 })).Should(BeTrue())
            Expect(len(stripe.Nodes)).Should(Equal(1))
        })

        It("should be idempotent", func() {
            Expect(stripe.DetachNode(Address{ Host: "host1", Port: 9510 })).Should(BeTrue())
            Expect(stripe.DetachNode(Address{ Host: "host1", Port: 9510 })).Should(BeFalse())
        })
    })
})
