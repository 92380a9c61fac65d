// Package storage abstracts the object store holding audio clips, embedding
// dumps, and result documents. The production implementation speaks the S3
// protocol; an in-memory implementation backs tests.
package storage
