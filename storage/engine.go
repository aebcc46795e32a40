package storage

import (
    "errors"
    "sort"

    "github.com/syndtr/goleveldb/leveldb"
    levelErrors "github.com/syndtr/goleveldb/leveldb/errors"
    "github.com/syndtr/goleveldb/leveldb/iterator"
    "github.com/syndtr/goleveldb/leveldb/opt"
    "github.com/syndtr/goleveldb/leveldb/util"

    . "github.com/cljohnso/terracotta-platform/error"
    . "github.com/cljohnso/terracotta-platform/logging"
)

const (
    PUT = iota
    DEL = iota
)

type Op struct {
    OpType int `json:"type"`
    OpKey []byte `json:"key"`
    OpValue []byte `json:"value"`
}

func (o *Op) IsDelete() bool {
    return o.OpType == DEL
}

func (o *Op) IsPut() bool {
    return o.OpType == PUT
}

func (o *Op) Key() []byte {
    return o.OpKey
}

func (o *Op) Value() []byte {
    return o.OpValue
}

type Batch struct {
    BatchOps map[string]Op `json:"ops"`
}

func NewBatch() *Batch {
    return &Batch{ make(map[string]Op) }
}

func (batch *Batch) Put(key []byte, value []byte) *Batch {
    batch.BatchOps[string(key)] = Op{ PUT, key, value }

    return batch
}

func (batch *Batch) Delete(key []byte) *Batch {
    batch.BatchOps[string(key)] = Op{ DEL, key, nil }

    return batch
}

func (batch *Batch) Ops() map[string]Op {
    return batch.BatchOps
}

type StorageIterator interface {
    Next() bool
    Key() []byte
    Value() []byte
    Release()
    Error() error
}

// StorageDriver is the seam between the sanskrit journal and its backing
// store. Sync batches must not return until the write is durable.
type StorageDriver interface {
    Open() error
    Close() error
    Recover() error
    Get([][]byte) ([][]byte, error)
    GetRange([]byte, []byte) (StorageIterator, error)
    Batch(*Batch, bool) error
}

type LevelDBIterator struct {
    snapshot *leveldb.Snapshot
    it iterator.Iterator
    err error
}

func (it *LevelDBIterator) Next() bool {
    if it.it == nil {
        return false
    }

    if it.it.Next() {
        return true
    }

    if it.it.Error() != nil {
        it.err = it.it.Error()
        RecordStorageError("iterator.next()", "")
    }

    it.it.Release()
    it.it = nil

    return false
}

func (it *LevelDBIterator) Key() []byte {
    if it.it == nil || it.err != nil {
        return nil
    }

    return it.it.Key()
}

func (it *LevelDBIterator) Value() []byte {
    if it.it == nil || it.err != nil {
        return nil
    }

    return it.it.Value()
}

func (it *LevelDBIterator) Release() {
    it.snapshot.Release()

    if it.it == nil {
        return
    }

    it.it.Release()
    it.it = nil
}

func (it *LevelDBIterator) Error() error {
    return it.err
}

type LevelDBStorageDriver struct {
    file string
    options *opt.Options
    db *leveldb.DB
}

func NewLevelDBStorageDriver(file string, options *opt.Options) *LevelDBStorageDriver {
    return &LevelDBStorageDriver{ file, options, nil }
}

func (levelDriver *LevelDBStorageDriver) File() string {
    return levelDriver.file
}

func (levelDriver *LevelDBStorageDriver) Open() error {
    levelDriver.Close()

    db, err := leveldb.OpenFile(levelDriver.file, levelDriver.options)

    if err != nil {
        RecordStorageError("open()", levelDriver.file)

        if levelErrors.IsCorrupted(err) {
            Log.Criticalf("LevelDB database is corrupted: %v", err.Error())

            return ECorrupted
        }

        return err
    }

    levelDriver.db = db

    return nil
}

func (levelDriver *LevelDBStorageDriver) Close() error {
    if levelDriver.db == nil {
        return nil
    }

    err := levelDriver.db.Close()

    levelDriver.db = nil

    return err
}

func (levelDriver *LevelDBStorageDriver) Recover() error {
    levelDriver.Close()

    db, err := leveldb.RecoverFile(levelDriver.file, levelDriver.options)

    if err != nil {
        RecordStorageError("recover()", levelDriver.file)

        return err
    }

    levelDriver.db = db

    return nil
}

func (levelDriver *LevelDBStorageDriver) Get(keys [][]byte) ([][]byte, error) {
    if levelDriver.db == nil {
        return nil, errors.New("Driver is closed")
    }

    if keys == nil {
        return [][]byte{ }, nil
    }

    snapshot, err := levelDriver.db.GetSnapshot()

    defer snapshot.Release()

    if err != nil {
        RecordStorageError("get()", levelDriver.file)

        return nil, err
    }

    values := make([][]byte, len(keys))

    for i, key := range keys {
        if key == nil {
            values[i] = nil
        } else {
            values[i], err = snapshot.Get(key, &opt.ReadOptions{ DontFillCache: false, Strict: opt.DefaultStrict })

            if err != nil {
                if err.Error() != "leveldb: not found" {
                    RecordStorageError("get()", levelDriver.file)

                    return nil, err
                } else {
                    values[i] = nil
                }
            }
        }
    }

    return values, nil
}

func (levelDriver *LevelDBStorageDriver) GetRange(min, max []byte) (StorageIterator, error) {
    if levelDriver.db == nil {
        return nil, errors.New("Driver is closed")
    }

    snapshot, err := levelDriver.db.GetSnapshot()

    if err != nil {
        snapshot.Release()
        RecordStorageError("getRange()", levelDriver.file)

        return nil, err
    }

    it := snapshot.NewIterator(&util.Range{ Start: min, Limit: max }, nil)

    return &LevelDBIterator{ snapshot, it, nil }, nil
}

func (levelDriver *LevelDBStorageDriver) Batch(batch *Batch, sync bool) error {
    if levelDriver.db == nil {
        return errors.New("Driver is closed")
    }

    if batch == nil {
        return nil
    }

    b := new(leveldb.Batch)
    ops := batch.Ops()
    opList := make([]Op, 0, len(ops))

    for _, op := range ops {
        opList = append(opList, op)
    }

    sort.Slice(opList, func(i, j int) bool {
        return string(opList[i].Key()) < string(opList[j].Key())
    })

    for _, op := range opList {
        if op.OpType == PUT {
            b.Put(op.Key(), op.Value())
        } else if op.OpType == DEL {
            b.Delete(op.Key())
        }
    }

    err := levelDriver.db.Write(b, &opt.WriteOptions{ Sync: sync })

    if err != nil {
        RecordStorageError("batch()", levelDriver.file)
    }

    return err
}
