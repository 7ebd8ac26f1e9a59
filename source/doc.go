// Package source opens entity inputs and decodes them one entity at a time.
//
// Inputs are addressed by URI. Plain paths and file:// URIs are read from the
// local file system, s3://bucket/key from S3-compatible storage. The
// compression is detected from the file extension through a
// compress.Registry:
//
//	rc, err := source.Open(ctx, "s3://osm/berlin.ndjson.zst",
//	    source.WithS3(minio.Config{Endpoint: "localhost:9000"}),
//	)
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
//	err = source.Each(ctx, rc, osm.SinkFunc(func(o *osm.Object) error {
//	    ...
//	}))
package source
