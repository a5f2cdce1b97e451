package storage

import (
	"fmt"

	"github.com/campusbite/canteen/config"
)

// Options selects and configures a driver.
type Options struct {
	Driver string // "local" | "s3"

	LocalRoot string
	LocalURL  string

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string
	S3URL      string
}

// FromConfig reads STORAGE_* and S3_* keys.
func FromConfig() Options {
	return Options{
		Driver:     config.StorageDefault(),
		LocalRoot:  config.StorageLocalRoot(),
		LocalURL:   config.StorageURL(),
		S3Bucket:   config.StorageS3Bucket(),
		S3Region:   config.StorageS3Region(),
		S3Key:      config.StorageS3Key(),
		S3Secret:   config.StorageS3Secret(),
		S3Endpoint: config.StorageS3Endpoint(),
		S3URL:      config.StorageS3URL(),
	}
}

// Open builds the driver named by opts.Driver.
func Open(opts Options) (Disk, error) {
	switch opts.Driver {
	case "", "local":
		return NewLocal(opts.LocalRoot, opts.LocalURL)
	case "s3":
		return NewS3(opts)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q (supported: local, s3)", opts.Driver)
	}
}
