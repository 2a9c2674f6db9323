// Package s3 is a small S3 client used to persist cluster inventory records.
//
// It works against AWS S3 and any S3-compatible endpoint. Only the handful
// of bucket and object calls the inventory needs are exposed.
package s3
