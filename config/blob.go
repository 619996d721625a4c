package config

// BlobConfig contains result blob store configuration.
type BlobConfig struct {
	// Region is the S3 region.
	Region string `env:"BLOB_REGION" envDefault:"us-east-1"`

	// Endpoint overrides the AWS endpoint for MinIO or localstack. Empty
	// uses the AWS default.
	Endpoint string `env:"BLOB_ENDPOINT" envDefault:""`

	// PathStyle forces path-style addressing, required by most
	// S3-compatible stores.
	PathStyle bool `env:"BLOB_PATH_STYLE" envDefault:"false"`

	// MaxObjectBytes caps accepted result blob size. 0 uses the built-in
	// default.
	MaxObjectBytes int64 `env:"BLOB_MAX_OBJECT_BYTES" envDefault:"0"`
}
