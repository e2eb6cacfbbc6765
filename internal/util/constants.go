package util

const DateFormat = "2006-01-02"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimePNG = "image/png"
)

// ContextUserKey gin 上下文中 JWT claims 的键
const ContextUserKey = "user"
