// Package config carries the storage engine's build-time constants.
package config

import "github.com/ncw/directio"

// PageSize is the fixed size, in bytes, of every page in the system.
// directio requires reads/writes to be aligned to the platform's block
// size, so PageSize piggybacks on that alignment.
const PageSize int64 = directio.BlockSize

// PoolSize is the default number of frames in a buffer pool.
const PoolSize = 64

// LogFileName is the default name of the write-ahead hook's log file.
const LogFileName = "bufftree.wal"
