package changes_test

import (
    . "github.com/cljohnso/terracotta-platform/changes"
    . "github.com/cljohnso/terracotta-platform/model"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Codec", func() {
    var cluster *Cluster

    BeforeEach(func() {
        cluster = testCluster()
    })

    Describe("V2 round trip", func() {
        It("should round trip a setting change", func() {
            change := backupDirChange(cluster, "/backup")
            encoded, err := EncodeChange(change)

            Expect(err).Should(BeNil())

            decoded, err := DecodeChange(encoded, cluster)

            Expect(err).Should(BeNil())
            Expect(decoded).Should(Equal(change))
        })

        It("should round trip a multi setting change", func() {
            change := MultiSettingChange{
                Changes: []SettingChange{
                    backupDirChange(cluster, "/backup"),
                    {
                        Op: OpUnset,
                        Configuration: Configuration{
                            SettingName: SettingOffheapResources,
                            Applicability: ClusterApplicability(),
                            Key: "main",
                        },
                    },
                },
            }

            encoded, err := EncodeChange(change)

            Expect(err).Should(BeNil())

            decoded, err := DecodeChange(encoded, cluster)

            Expect(err).Should(BeNil())
            Expect(decoded).Should(Equal(change))
        })

        It("should round trip a format upgrade change", func() {
            change := FormatUpgradeChange{ FromVersion: 1, ToVersion: 2 }
            encoded, err := EncodeChange(change)

            Expect(err).Should(BeNil())

            decoded, err := DecodeChange(encoded, nil)

            Expect(err).Should(BeNil())
            Expect(decoded).Should(Equal(change))
        })

        It("should round trip a node removal change", func() {
            change := NodeRemovalChange{ Address: Address{ Host: "host1", Port: 9510 } }
            encoded, err := EncodeChange(change)

            Expect(err).Should(BeNil())

            decoded, err := DecodeChange(encoded, cluster)

            Expect(err).Should(BeNil())
            Expect(decoded).Should(Equal(change))
        })
    })

    Describe("V1 compatibility", func() {
        It("should upgrade an index and name addressed setting change", func() {
            document := []byte(`{
                "version": "v1",
                "type": "setting",
                "body": {
                    "op": "set",
                    "setting": "backup-dir",
                    "applicability": { "scope": "node", "stripeId": 1, "nodeName": "node-2" },
                    "value": "/backup"
                }
            }`)

            decoded, err := DecodeChange(document, cluster)

            Expect(err).Should(BeNil())

            settingChange := decoded.(SettingChange)

            Expect(settingChange.Configuration.Applicability.StripeUID).Should(Equal(cluster.Stripes[0].UID))
            Expect(settingChange.Configuration.Applicability.NodeUID).Should(Equal(cluster.Stripes[0].Nodes[1].UID))

            // a V1 document, once decoded, encodes as V2
            reencoded, err := EncodeChange(decoded)

            Expect(err).Should(BeNil())

            roundTripped, err := DecodeChange(reencoded, cluster)

            Expect(err).Should(BeNil())
            Expect(roundTripped).Should(Equal(decoded))
        })

        It("should require a committed topology to resolve scoped V1 documents", func() {
            document := []byte(`{
                "version": "v1",
                "type": "setting",
                "body": {
                    "op": "set",
                    "setting": "backup-dir",
                    "applicability": { "scope": "node", "stripeId": 1, "nodeName": "node-2" },
                    "value": "/backup"
                }
            }`)

            _, err := DecodeChange(document, nil)

            Expect(err).Should(Equal(EFormatUpgradeRequired))
        })

        It("should reject an unknown format version", func() {
            _, err := DecodeChange([]byte(`{ "version": "v9", "type": "setting", "body": {} }`), cluster)

            Expect(err).ShouldNot(BeNil())
        })
    })
})
