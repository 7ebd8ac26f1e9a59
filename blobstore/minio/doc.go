// Package minio provides a blobstore.Store backed by the MinIO client.
//
// It works with Amazon S3 and S3-compatible systems such as MinIO, Ceph and
// Garage:
//
//	client, err := minio.NewClient(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minio.NewStore(client, "osm", "extracts/")
//	rc, err := store.Open(ctx, "berlin.ndjson.zst")
package minio
