package storage_test

import (
    "io/ioutil"
    "os"
    "path/filepath"

    . "github.com/cljohnso/terracotta-platform/storage"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Repository", func() {
    var workspace string

    BeforeEach(func() {
        var err error
        workspace, err = ioutil.TempDir("", "repository-test-")

        Expect(err).Should(BeNil())
    })

    AfterEach(func() {
        os.RemoveAll(workspace)
    })

    Describe("#CreateDirectories", func() {
        It("should create the full tree under a missing root", func() {
            repository := NewRepository(filepath.Join(workspace, "repo"), nil)

            Expect(repository.CreateDirectories()).Should(BeNil())

            for _, dir := range []string{ repository.ConfigPath(), repository.LicensePath(), repository.SanskritPath() } {
                info, err := os.Stat(dir)

                Expect(err).Should(BeNil())
                Expect(info.IsDir()).Should(BeTrue())
            }
        })

        It("should fill in the subtrees under a bare root", func() {
            root := filepath.Join(workspace, "repo")

            Expect(os.MkdirAll(root, 0755)).Should(BeNil())

            repository := NewRepository(root, nil)

            Expect(repository.CreateDirectories()).Should(BeNil())

            _, err := os.Stat(repository.SanskritPath())

            Expect(err).Should(BeNil())
        })

        It("should refuse a partially formed repository", func() {
            root := filepath.Join(workspace, "repo")

            Expect(os.MkdirAll(filepath.Join(root, "config"), 0755)).Should(BeNil())

            repository := NewRepository(root, nil)

            Expect(repository.CreateDirectories()).Should(Equal(EPartialRepository))
        })
    })

    Describe("#NodeName", func() {
        It("should discover the node name from config filenames", func() {
            repository := NewRepository(filepath.Join(workspace, "repo"), nil)

            Expect(repository.CreateDirectories()).Should(BeNil())

            file := filepath.Join(repository.ConfigPath(), NewClusterConfigFilename("node-1", 1).String())

            Expect(ioutil.WriteFile(file, []byte("{}"), 0644)).Should(BeNil())

            nodeName, err := repository.NodeName()

            Expect(err).Should(BeNil())
            Expect(nodeName).Should(Equal("node-1"))
        })

        It("should fail when files for different nodes are mixed", func() {
            repository := NewRepository(filepath.Join(workspace, "repo"), nil)

            Expect(repository.CreateDirectories()).Should(BeNil())

            for _, name := range []string{ "node-1", "node-2" } {
                file := filepath.Join(repository.ConfigPath(), NewClusterConfigFilename(name, 1).String())

                Expect(ioutil.WriteFile(file, []byte("{}"), 0644)).Should(BeNil())
            }

            _, err := repository.NodeName()

            Expect(err).ShouldNot(BeNil())
        })

        It("should report no name for an empty repository", func() {
            repository := NewRepository(filepath.Join(workspace, "repo"), nil)

            Expect(repository.CreateDirectories()).Should(BeNil())

            nodeName, err := repository.NodeName()

            Expect(err).Should(BeNil())
            Expect(nodeName).Should(Equal(""))
        })
    })
})

var _ = Describe("ClusterConfigFilename", func() {
    It("should round trip a node name containing dots", func() {
        filename := NewClusterConfigFilename("node.with.dots", 17)
        parsed, err := ParseClusterConfigFilename(filename.String())

        Expect(err).Should(BeNil())
        Expect(parsed.NodeName).Should(Equal("node.with.dots"))
        Expect(parsed.Version).Should(Equal(uint64(17)))
    })

    It("should reject filenames without a version", func() {
        _, err := ParseClusterConfigFilename("node-1.json")

        Expect(err).ShouldNot(BeNil())

        _, err = ParseClusterConfigFilename("garbage.txt")

        Expect(err).ShouldNot(BeNil())
    })
})
