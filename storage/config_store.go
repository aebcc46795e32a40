package storage

import (
    "encoding/json"
    "io/ioutil"
    "os"
    "path/filepath"
    "time"

    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/logging"
    . "github.com/cljohnso/terracotta-platform/model"
)

// FileConfigStorage persists one NodeContext snapshot per version as a file
// under the repository's config directory. Writes go to a temporary file
// that is fsynced and renamed into place, so a snapshot is either fully
// present or absent after a crash.
type FileConfigStorage struct {
    root string
    nodeName string
    Now func() time.Time
}

func NewFileConfigStorage(root string, nodeName string) *FileConfigStorage {
    return &FileConfigStorage{
        root: root,
        nodeName: nodeName,
        Now: time.Now,
    }
}

func (store *FileConfigStorage) path(version uint64) string {
    return filepath.Join(store.root, NewClusterConfigFilename(store.nodeName, version).String())
}

func (store *FileConfigStorage) SaveConfig(version uint64, nodeContext *NodeContext) error {
    file := store.path(version)
    Log.Debugf("Saving topology version %d to %s", version, file)

    encoded, err := json.MarshalIndent(nodeContext, "", "  ")

    if err != nil {
        return err
    }

    temp, err := ioutil.TempFile(store.root, "."+store.nodeName+"-*")

    if err != nil {
        RecordStorageError("saveConfig()", file)

        return EStorage
    }

    defer os.Remove(temp.Name())

    if _, err := temp.Write(encoded); err != nil {
        temp.Close()
        RecordStorageError("saveConfig()", file)

        return EStorage
    }

    if err := temp.Sync(); err != nil {
        temp.Close()
        RecordStorageError("saveConfig()", file)

        return EStorage
    }

    if err := temp.Close(); err != nil {
        RecordStorageError("saveConfig()", file)

        return EStorage
    }

    if err := os.Rename(temp.Name(), file); err != nil {
        RecordStorageError("saveConfig()", file)

        return EStorage
    }

    return syncDirectory(store.root)
}

func (store *FileConfigStorage) GetConfig(version uint64) (*NodeContext, error) {
    file := store.path(version)
    Log.Debugf("Loading topology version %d from %s", version, file)

    encoded, err := ioutil.ReadFile(file)

    if os.IsNotExist(err) {
        return nil, EEmpty
    }

    if err != nil {
        RecordStorageError("getConfig()", file)

        return nil, EStorage
    }

    var nodeContext NodeContext

    if err := json.Unmarshal(encoded, &nodeContext); err != nil {
        RecordStorageError("getConfig()", file)

        return nil, ECorrupted
    }

    return &nodeContext, nil
}

func (store *FileConfigStorage) DeleteConfig(version uint64) error {
    file := store.path(version)

    if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
        RecordStorageError("deleteConfig()", file)

        return EStorage
    }

    return syncDirectory(store.root)
}

// Reset moves every versioned config file aside into timestamped backups,
// leaving the store empty.
func (store *FileConfigStorage) Reset() error {
    entries, err := ioutil.ReadDir(store.root)

    if err != nil {
        RecordStorageError("reset()", store.root)

        return EStorage
    }

    now := store.Now()

    for _, entry := range entries {
        if entry.IsDir() {
            continue
        }

        if _, err := ParseClusterConfigFilename(entry.Name()); err != nil {
            continue
        }

        original := filepath.Join(store.root, entry.Name())
        backup := filepath.Join(store.root, BackupName(entry.Name(), now))

        if err := os.Rename(original, backup); err != nil {
            RecordStorageError("reset()", original)

            return EStorage
        }
    }

    return syncDirectory(store.root)
}

func syncDirectory(path string) error {
    dir, err := os.Open(path)

    if err != nil {
        return nil
    }

    defer dir.Close()

    dir.Sync()

    return nil
}
