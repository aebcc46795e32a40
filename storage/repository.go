package storage

import (
    "errors"
    "fmt"
    "io/ioutil"
    "os"
    "path/filepath"
    "time"

    . "github.com/cljohnso/terracotta-platform/logging"
    "github.com/cljohnso/terracotta-platform/util"
)

const (
    configDirectory = "config"
    licenseDirectory = "license"
    sanskritDirectory = "sanskrit"
)

const backupTimestampFormat = "20060102.150405"

const (
    repositoryDepthNone = iota
    repositoryDepthRootOnly = iota
    repositoryDepthFull = iota
)

var EPartialRepository = errors.New("Repository is partially formed. A valid repository contains 'config', 'license' and 'sanskrit' directories")

// Repository owns the on-disk tree for one node:
//
//   <root>/
//     config/      versioned NodeContext snapshots
//     license/     optional license.xml
//     sanskrit/    append-only change journal
//
// A root with only some of the subtrees present is refused, since it
// indicates a half-deleted or foreign directory.
type Repository struct {
    root string
    configPath string
    licensePath string
    sanskritPath string
}

func NewRepository(root string, substitutor *util.ParameterSubstitutor) *Repository {
    if substitutor != nil {
        root = substitutor.Substitute(root)
    }

    if absolute, err := filepath.Abs(root); err == nil {
        root = absolute
    }

    return &Repository{
        root: root,
        configPath: filepath.Join(root, configDirectory),
        licensePath: filepath.Join(root, licenseDirectory),
        sanskritPath: filepath.Join(root, sanskritDirectory),
    }
}

func (repository *Repository) Root() string {
    return repository.root
}

func (repository *Repository) ConfigPath() string {
    return repository.configPath
}

func (repository *Repository) LicensePath() string {
    return repository.licensePath
}

func (repository *Repository) SanskritPath() string {
    return repository.sanskritPath
}

func (repository *Repository) depth() (int, error) {
    rootExists, err := directoryExists(repository.root)

    if err != nil {
        return repositoryDepthNone, err
    }

    configExists, err := directoryExists(repository.configPath)

    if err != nil {
        return repositoryDepthNone, err
    }

    licenseExists, err := directoryExists(repository.licensePath)

    if err != nil {
        return repositoryDepthNone, err
    }

    sanskritExists, err := directoryExists(repository.sanskritPath)

    if err != nil {
        return repositoryDepthNone, err
    }

    if rootExists && configExists && licenseExists && sanskritExists {
        return repositoryDepthFull, nil
    }

    if rootExists && !configExists && !licenseExists && !sanskritExists {
        return repositoryDepthRootOnly, nil
    }

    if !rootExists {
        return repositoryDepthNone, nil
    }

    return repositoryDepthNone, EPartialRepository
}

// CreateDirectories makes the repository fully formed, creating whatever
// part of the tree is missing. A partially formed tree is a hard error.
func (repository *Repository) CreateDirectories() error {
    depth, err := repository.depth()

    if err != nil {
        return err
    }

    if depth == repositoryDepthFull {
        return nil
    }

    Log.Infof("Creating configuration repository at %s", repository.root)

    for _, dir := range []string{ repository.root, repository.configPath, repository.licensePath, repository.sanskritPath } {
        if err := os.MkdirAll(dir, 0755); err != nil {
            RecordStorageError("createDirectories()", dir)

            return err
        }
    }

    return nil
}

// NodeName discovers the node this repository belongs to from the versioned
// config filenames. A repository holding records for more than one node name
// is malformed.
func (repository *Repository) NodeName() (string, error) {
    depth, err := repository.depth()

    if err != nil {
        return "", err
    }

    if depth != repositoryDepthFull {
        return "", nil
    }

    entries, err := ioutil.ReadDir(repository.configPath)

    if err != nil {
        return "", err
    }

    nodeName := ""

    for _, entry := range entries {
        if entry.IsDir() {
            continue
        }

        filename, err := ParseClusterConfigFilename(entry.Name())

        if err != nil {
            continue
        }

        if nodeName == "" {
            nodeName = filename.NodeName

            continue
        }

        if nodeName != filename.NodeName {
            return "", errors.New(fmt.Sprintf("Found versioned cluster config files for different nodes (%s, %s) in %s", nodeName, filename.NodeName, repository.configPath))
        }
    }

    return nodeName, nil
}

// BackupName produces the name a directory or file takes when it is moved
// aside by a reset.
func BackupName(original string, now time.Time) string {
    return "backup-" + original + "-" + now.Format(backupTimestampFormat)
}

func directoryExists(path string) (bool, error) {
    info, err := os.Stat(path)

    if os.IsNotExist(err) {
        return false, nil
    }

    if err != nil {
        return false, err
    }

    if !info.IsDir() {
        return false, errors.New(fmt.Sprintf("%s exists but is not a directory", path))
    }

    return true, nil
}
